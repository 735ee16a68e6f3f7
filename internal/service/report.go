package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-report-service/internal/db"
	"github.com/septivank/meter-report-service/internal/export"
	"github.com/septivank/meter-report-service/internal/logging"
	"github.com/septivank/meter-report-service/internal/metrics"
	"github.com/septivank/meter-report-service/internal/mq"
	"github.com/septivank/meter-report-service/internal/validator"
	"go.uber.org/zap"
)

// RequestPublisher queues report requests for fulfillment
type RequestPublisher interface {
	PublishReportRequested(ctx context.Context, msg mq.ReportRequestedMessage) error
}

// ReportService creates reports and renders the report collection
type ReportService struct {
	store     ReportStore
	publisher RequestPublisher
	validator *validator.Validator
	generator *export.Generator
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	store ReportStore,
	publisher RequestPublisher,
	v *validator.Validator,
	generator *export.Generator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		store:     store,
		publisher: publisher,
		validator: v,
		generator: generator,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateReport stores a Preparing report and queues exactly one request for it.
// When the request cannot be queued the report is marked Failed and the error returned.
func (s *ReportService) CreateReport(ctx context.Context, meterSerialNumber string) (*db.Report, error) {
	serial, err := s.validator.NormalizeSerialNumber(meterSerialNumber)
	if err != nil {
		return nil, err
	}

	report := db.NewReport(serial, s.now())
	reqLogger := logging.WithReportID(s.logger, report.ID.String())

	if err := s.store.CreateReport(ctx, report); err != nil {
		reqLogger.Error("failed to create report", zap.Error(err))
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	if err := s.publisher.PublishReportRequested(ctx, mq.ReportRequestedMessage{ReportID: report.ID}); err != nil {
		reqLogger.Error("failed to queue report request", zap.Error(err))

		content := "report request could not be queued: " + err.Error()
		if _, markErr := s.store.CompleteReport(ctx, report.ID, db.StatusFailed, content); markErr != nil {
			reqLogger.Error("failed to mark unqueued report as failed", zap.Error(markErr))
		}
		return nil, fmt.Errorf("failed to queue report request: %w", err)
	}

	s.metrics.IncReportsRequested()
	reqLogger.Info("report requested", zap.String("meter_serial_number", serial))

	return report, nil
}

// GetReport returns a single report
func (s *ReportService) GetReport(ctx context.Context, id uuid.UUID) (*db.Report, error) {
	return s.store.GetReport(ctx, id)
}

// GetData lists every report flattened for export, in store order
func (s *ReportService) GetData(ctx context.Context) ([]export.Row, error) {
	reports, err := s.store.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return export.NewRows(reports), nil
}

// Export renders the report collection in the given format
func (s *ReportService) Export(ctx context.Context, format export.Format) (*export.File, error) {
	rows, err := s.GetData(ctx)
	if err != nil {
		return nil, err
	}

	file, err := s.generator.Generate(format, rows)
	if err != nil {
		return nil, err
	}

	s.metrics.IncExport(format.Key)
	return file, nil
}

func (s *ReportService) GenerateExcel(ctx context.Context) (*export.File, error) {
	return s.Export(ctx, export.FormatExcel)
}

func (s *ReportService) GenerateCsv(ctx context.Context) (*export.File, error) {
	return s.Export(ctx, export.FormatCSV)
}

func (s *ReportService) GenerateText(ctx context.Context) (*export.File, error) {
	return s.Export(ctx, export.FormatText)
}
