package export

import (
	"strconv"
	"time"

	"github.com/septivank/meter-report-service/internal/db"
	"github.com/septivank/meter-report-service/internal/meter"
	"github.com/septivank/meter-report-service/tools/timeparser"
)

// Header is the column order shared by every format
var Header = []string{
	"RequestDate",
	"Status",
	"MeterSerialNumber",
	"LastIndex",
	"ReadingTime",
	"SerialNumber",
	"VoltageValue",
	"CurrentValue",
}

// Row is one report flattened for export
type Row struct {
	RequestDate       time.Time
	Status            db.ReportStatus
	MeterSerialNumber string
	LastIndex         float64
	ReadingTime       time.Time
	SerialNumber      string
	VoltageValue      float64
	CurrentValue      float64
}

// NewRow flattens a report. Content that is missing or not a snapshot
// (Preparing and Failed reports) leaves the snapshot columns zero.
func NewRow(report db.Report) Row {
	row := Row{
		RequestDate:       report.RequestDate,
		Status:            report.Status,
		MeterSerialNumber: report.MeterSerialNumber,
	}

	if report.Content == nil || *report.Content == "" {
		return row
	}

	snapshot, err := meter.ParseSnapshot(*report.Content)
	if err != nil {
		return row
	}

	row.LastIndex = snapshot.LastIndex
	row.ReadingTime = snapshot.ReadingTime
	row.SerialNumber = snapshot.SerialNumber
	row.VoltageValue = snapshot.VoltageValue
	row.CurrentValue = snapshot.CurrentValue
	return row
}

// NewRows flattens reports keeping their order
func NewRows(reports []db.Report) []Row {
	rows := make([]Row, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, NewRow(r))
	}
	return rows
}

// Strings renders the row in Header order
func (r Row) Strings() []string {
	return []string{
		timeparser.FormatDisplay(r.RequestDate),
		string(r.Status),
		r.MeterSerialNumber,
		formatNumber(r.LastIndex),
		timeparser.FormatDisplay(r.ReadingTime),
		r.SerialNumber,
		formatNumber(r.VoltageValue),
		formatNumber(r.CurrentValue),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
