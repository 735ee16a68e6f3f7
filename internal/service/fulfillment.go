package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-report-service/internal/db"
	"github.com/septivank/meter-report-service/internal/logging"
	"github.com/septivank/meter-report-service/internal/meter"
	"github.com/septivank/meter-report-service/internal/metrics"
	"github.com/septivank/meter-report-service/internal/mq"
	"github.com/septivank/meter-report-service/internal/repository"
	"go.uber.org/zap"
)

// ReportStore is the persistence needed by the report services
type ReportStore interface {
	CreateReport(ctx context.Context, report *db.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*db.Report, error)
	ListReports(ctx context.Context) ([]db.Report, error)
	CompleteReport(ctx context.Context, id uuid.UUID, status db.ReportStatus, content string) (bool, error)
}

// MeterProvider fetches measurement snapshots for a meter
type MeterProvider interface {
	GetSnapshot(ctx context.Context, serialNumber string) (*meter.Snapshot, error)
}

// FulfillmentService turns report requested messages into Completed or Failed reports
type FulfillmentService struct {
	store    ReportStore
	provider MeterProvider
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewFulfillmentService creates a new fulfillment service
func NewFulfillmentService(
	store ReportStore,
	provider MeterProvider,
	m *metrics.Metrics,
	logger *zap.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		store:    store,
		provider: provider,
		metrics:  m,
		logger:   logger,
	}
}

// ProcessMessage fulfills the report named by a report requested message.
// Meter provider failures are recorded on the report and never returned;
// only report store failures are, so the message can be redelivered.
func (s *FulfillmentService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg mq.ReportRequestedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.metrics.IncFulfillment(metrics.OutcomeError)
		return fmt.Errorf("%w: failed to unmarshal message: %v", mq.ErrRejected, err)
	}
	if msg.ReportID == uuid.Nil {
		s.metrics.IncFulfillment(metrics.OutcomeError)
		return fmt.Errorf("%w: message has no report id", mq.ErrRejected)
	}

	reqLogger := logging.WithReportID(s.logger, msg.ReportID.String())

	report, err := s.store.GetReport(ctx, msg.ReportID)
	if errors.Is(err, repository.ErrReportNotFound) {
		reqLogger.Warn("report not found, dropping message")
		s.metrics.IncFulfillment(metrics.OutcomeNotFound)
		return nil
	}
	if err != nil {
		reqLogger.Error("failed to load report", zap.Error(err))
		s.metrics.IncFulfillment(metrics.OutcomeError)
		return fmt.Errorf("failed to load report: %w", err)
	}

	if report.Status != db.StatusPreparing {
		reqLogger.Info("report already fulfilled, skipping", zap.String("status", string(report.Status)))
		s.metrics.IncFulfillment(metrics.OutcomeSkipped)
		return nil
	}

	reqLogger.Info("fulfilling report", zap.String("meter_serial_number", report.MeterSerialNumber))

	status, content := s.fetch(ctx, reqLogger, report.MeterSerialNumber)

	updated, err := s.store.CompleteReport(ctx, report.ID, status, content)
	if err != nil {
		reqLogger.Error("failed to record report result", zap.Error(err), zap.String("status", string(status)))
		s.metrics.IncFulfillment(metrics.OutcomeError)
		return fmt.Errorf("failed to record report result: %w", err)
	}
	if !updated {
		reqLogger.Info("report fulfilled by another delivery, result discarded")
		s.metrics.IncFulfillment(metrics.OutcomeSkipped)
		return nil
	}

	if status == db.StatusCompleted {
		s.metrics.IncFulfillment(metrics.OutcomeCompleted)
	} else {
		s.metrics.IncFulfillment(metrics.OutcomeFailed)
	}

	reqLogger.Info("report fulfilled", zap.String("status", string(status)))
	return nil
}

// fetch calls the provider once and maps the result to a terminal status and content
func (s *FulfillmentService) fetch(ctx context.Context, logger *zap.Logger, serialNumber string) (db.ReportStatus, string) {
	start := time.Now()
	snapshot, err := s.provider.GetSnapshot(ctx, serialNumber)
	s.metrics.ObserveProviderCall(time.Since(start))

	if err != nil {
		logger.Warn("meter data unavailable", zap.Error(err))
		return db.StatusFailed, unavailableContent(err)
	}
	if snapshot == nil || snapshot.IsEmpty() {
		logger.Warn("meter provider returned an empty snapshot")
		return db.StatusFailed, unavailableContent(errors.New("empty snapshot"))
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		logger.Error("failed to encode snapshot", zap.Error(err))
		return db.StatusFailed, unavailableContent(err)
	}

	return db.StatusCompleted, string(data)
}

func unavailableContent(err error) string {
	return "meter data unavailable: " + err.Error()
}
