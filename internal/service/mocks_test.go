package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/septivank/meter-report-service/internal/db"
	"github.com/septivank/meter-report-service/internal/meter"
	"github.com/septivank/meter-report-service/internal/mq"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateReport(ctx context.Context, report *db.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockStore) GetReport(ctx context.Context, id uuid.UUID) (*db.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Report), args.Error(1)
}

func (m *MockStore) ListReports(ctx context.Context) ([]db.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Report), args.Error(1)
}

func (m *MockStore) CompleteReport(ctx context.Context, id uuid.UUID, status db.ReportStatus, content string) (bool, error) {
	args := m.Called(ctx, id, status, content)
	return args.Bool(0), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetSnapshot(ctx context.Context, serialNumber string) (*meter.Snapshot, error) {
	args := m.Called(ctx, serialNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*meter.Snapshot), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishReportRequested(ctx context.Context, msg mq.ReportRequestedMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
