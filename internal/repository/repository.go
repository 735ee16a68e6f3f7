package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/meter-report-service/internal/db"
)

// ErrReportNotFound is returned when no report has the requested id
var ErrReportNotFound = errors.New("report not found")

// Repository handles report store operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, request_date, status, content, meter_serial_number`

// CreateReport inserts a new report
func (r *Repository) CreateReport(ctx context.Context, report *db.Report) error {
	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		report.ID,
		report.RequestDate,
		string(report.Status),
		report.Content,
		report.MeterSerialNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by id
func (r *Repository) GetReport(ctx context.Context, id uuid.UUID) (*db.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	return report, nil
}

// ListReports returns every report in request order
func (r *Repository) ListReports(ctx context.Context) ([]db.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY request_date, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []db.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return reports, nil
}

// CompleteReport records the fulfillment result of a Preparing report.
// It returns false when the report has already left Preparing, so concurrent
// deliveries of the same message write at most once.
func (r *Repository) CompleteReport(ctx context.Context, id uuid.UUID, status db.ReportStatus, content string) (bool, error) {
	if !db.StatusPreparing.CanTransitionTo(status) {
		return false, fmt.Errorf("invalid fulfillment status %q", status)
	}

	query := `
		UPDATE reports
		SET status = $1, content = $2
		WHERE id = $3 AND status = $4
	`

	tag, err := r.pool.Exec(ctx, query, string(status), content, id, string(db.StatusPreparing))
	if err != nil {
		return false, fmt.Errorf("failed to update report status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Ping checks that the report store is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanReport(row pgx.Row) (*db.Report, error) {
	var (
		report db.Report
		status string
	)
	err := row.Scan(
		&report.ID,
		&report.RequestDate,
		&status,
		&report.Content,
		&report.MeterSerialNumber,
	)
	if err != nil {
		return nil, err
	}

	report.Status, err = db.ParseReportStatus(status)
	if err != nil {
		return nil, err
	}

	return &report, nil
}
