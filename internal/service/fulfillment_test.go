package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/septivank/meter-report-service/internal/db"
	"github.com/septivank/meter-report-service/internal/meter"
	"github.com/septivank/meter-report-service/internal/metrics"
	"github.com/septivank/meter-report-service/internal/mq"
	"github.com/septivank/meter-report-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newFulfillment(t *testing.T) (*FulfillmentService, *MockStore, *MockProvider) {
	t.Helper()
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewFulfillmentService(store, provider, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	return svc, store, provider
}

func requestBody(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(mq.ReportRequestedMessage{ReportID: id})
	require.NoError(t, err)
	return body
}

func preparingReport(serial string) *db.Report {
	return db.NewReport(serial, time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC))
}

func TestProcessMessage_Completed(t *testing.T) {
	svc, store, provider := newFulfillment(t)
	report := preparingReport("TEST1234")

	snapshot := &meter.Snapshot{
		SerialNumber: "TEST1234",
		ReadingTime:  time.Date(2024, 3, 5, 8, 29, 0, 0, time.UTC),
		LastIndex:    100,
		VoltageValue: 220,
		CurrentValue: 10,
	}

	var stored string
	store.On("GetReport", mock.Anything, report.ID).Return(report, nil)
	provider.On("GetSnapshot", mock.Anything, "TEST1234").Return(snapshot, nil).Once()
	store.On("CompleteReport", mock.Anything, report.ID, db.StatusCompleted, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { stored = args.String(3) }).
		Return(true, nil).Once()

	require.NoError(t, svc.ProcessMessage(context.Background(), requestBody(t, report.ID)))

	parsed, err := meter.ParseSnapshot(stored)
	require.NoError(t, err)
	assert.Equal(t, *snapshot, parsed)

	store.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestProcessMessage_ProviderStatusFails(t *testing.T) {
	svc, store, provider := newFulfillment(t)
	report := preparingReport("ABC123")

	store.On("GetReport", mock.Anything, report.ID).Return(report, nil)
	provider.On("GetSnapshot", mock.Anything, "ABC123").
		Return(nil, &meter.StatusError{StatusCode: 404, Status: "404 Not Found"}).Once()
	store.On("CompleteReport", mock.Anything, report.ID, db.StatusFailed,
		mock.MatchedBy(func(content string) bool {
			return content == "meter data unavailable: meter provider returned status 404 Not Found"
		})).Return(true, nil).Once()

	require.NoError(t, svc.ProcessMessage(context.Background(), requestBody(t, report.ID)))

	store.AssertExpectations(t)
	provider.AssertNumberOfCalls(t, "GetSnapshot", 1)
}

func TestProcessMessage_TransportErrorFails(t *testing.T) {
	svc, store, provider := newFulfillment(t)
	report := preparingReport("ABC123")

	store.On("GetReport", mock.Anything, report.ID).Return(report, nil)
	provider.On("GetSnapshot", mock.Anything, "ABC123").
		Return(nil, fmt.Errorf("meter provider request failed: %w", context.DeadlineExceeded)).Once()
	store.On("CompleteReport", mock.Anything, report.ID, db.StatusFailed, mock.AnythingOfType("string")).
		Return(true, nil).Once()

	err := svc.ProcessMessage(context.Background(), requestBody(t, report.ID))

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestProcessMessage_EmptySnapshotFails(t *testing.T) {
	svc, store, provider := newFulfillment(t)
	report := preparingReport("ABC123")

	store.On("GetReport", mock.Anything, report.ID).Return(report, nil)
	provider.On("GetSnapshot", mock.Anything, "ABC123").Return(&meter.Snapshot{}, nil).Once()
	store.On("CompleteReport", mock.Anything, report.ID, db.StatusFailed, "meter data unavailable: empty snapshot").
		Return(true, nil).Once()

	require.NoError(t, svc.ProcessMessage(context.Background(), requestBody(t, report.ID)))
	store.AssertExpectations(t)
}

func TestProcessMessage_ReportNotFound(t *testing.T) {
	svc, store, provider := newFulfillment(t)
	id := uuid.New()

	store.On("GetReport", mock.Anything, id).Return(nil, repository.ErrReportNotFound)

	require.NoError(t, svc.ProcessMessage(context.Background(), requestBody(t, id)))

	provider.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CompleteReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMessage_TerminalReportIsNoop(t *testing.T) {
	for _, status := range []db.ReportStatus{db.StatusCompleted, db.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			svc, store, provider := newFulfillment(t)
			report := preparingReport("TEST1234")
			report.Status = status

			store.On("GetReport", mock.Anything, report.ID).Return(report, nil)

			require.NoError(t, svc.ProcessMessage(context.Background(), requestBody(t, report.ID)))

			provider.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "CompleteReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProcessMessage_MalformedMessageRejected(t *testing.T) {
	svc, store, provider := newFulfillment(t)

	for _, body := range []string{"not json", `{"report_id":"nope"}`, `{}`} {
		err := svc.ProcessMessage(context.Background(), []byte(body))
		require.Error(t, err, body)
		assert.ErrorIs(t, err, mq.ErrRejected, body)
	}

	store.AssertNotCalled(t, "GetReport", mock.Anything, mock.Anything)
	provider.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
}

func TestProcessMessage_StoreErrorPropagates(t *testing.T) {
	svc, store, provider := newFulfillment(t)
	id := uuid.New()
	storeErr := errors.New("connection refused")

	store.On("GetReport", mock.Anything, id).Return(nil, storeErr)

	err := svc.ProcessMessage(context.Background(), requestBody(t, id))

	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, mq.ErrRejected)
	provider.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
}

func TestProcessMessage_CompleteErrorPropagates(t *testing.T) {
	svc, store, provider := newFulfillment(t)
	report := preparingReport("TEST1234")
	storeErr := errors.New("write timeout")

	store.On("GetReport", mock.Anything, report.ID).Return(report, nil)
	provider.On("GetSnapshot", mock.Anything, "TEST1234").
		Return(&meter.Snapshot{SerialNumber: "TEST1234", LastIndex: 1}, nil)
	store.On("CompleteReport", mock.Anything, report.ID, db.StatusCompleted, mock.Anything).Return(false, storeErr)

	err := svc.ProcessMessage(context.Background(), requestBody(t, report.ID))
	assert.ErrorIs(t, err, storeErr)
}

func TestProcessMessage_LostRaceIsAcked(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewFulfillmentService(store, provider, nil, zap.New(core))
	report := preparingReport("TEST1234")

	store.On("GetReport", mock.Anything, report.ID).Return(report, nil)
	provider.On("GetSnapshot", mock.Anything, "TEST1234").
		Return(&meter.Snapshot{SerialNumber: "TEST1234", LastIndex: 1}, nil)
	store.On("CompleteReport", mock.Anything, report.ID, db.StatusCompleted, mock.Anything).Return(false, nil).Once()

	require.NoError(t, svc.ProcessMessage(context.Background(), requestBody(t, report.ID)))

	assert.Equal(t, 1, logs.FilterMessage("report fulfilled by another delivery, result discarded").Len())
	store.AssertNumberOfCalls(t, "CompleteReport", 1)
}
