package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MeterSerialNumberLength is the maximum length of a meter serial number
const MeterSerialNumberLength = 8

// ReportStatus is the fulfillment state of a report
type ReportStatus string

const (
	StatusPreparing ReportStatus = "Preparing"
	StatusCompleted ReportStatus = "Completed"
	StatusFailed    ReportStatus = "Failed"
)

// ParseReportStatus converts a stored status value into a ReportStatus
func ParseReportStatus(s string) (ReportStatus, error) {
	switch ReportStatus(s) {
	case StatusPreparing, StatusCompleted, StatusFailed:
		return ReportStatus(s), nil
	}
	return "", fmt.Errorf("unknown report status %q", s)
}

// IsTerminal reports whether no further transition is possible
func (s ReportStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine allows moving to next.
// Only Preparing can be left, and only towards a terminal state.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	return s == StatusPreparing && next.IsTerminal()
}

// Report represents a report record in the database
type Report struct {
	ID                uuid.UUID    `json:"id"`
	RequestDate       time.Time    `json:"requestDate"`
	Status            ReportStatus `json:"status"`
	Content           *string      `json:"content,omitempty"`
	MeterSerialNumber string       `json:"meterSerialNumber"`
}

// NewReport creates a report in the initial Preparing state
func NewReport(meterSerialNumber string, now time.Time) *Report {
	return &Report{
		ID:                uuid.New(),
		RequestDate:       now.UTC(),
		Status:            StatusPreparing,
		MeterSerialNumber: meterSerialNumber,
	}
}

// ContentString returns the content or an empty string when unset
func (r *Report) ContentString() string {
	if r.Content == nil {
		return ""
	}
	return *r.Content
}
