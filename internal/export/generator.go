package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName      = "Reports"
	excelDateFmt   = "yyyy-mm-dd hh:mm:ss"
	maxColumnWidth = 60
)

// File is a generated export ready to be served
type File struct {
	Data        []byte
	ContentType string
	FileName    string
}

// FileName builds the download name for an export generated at the given time
func FileName(format Format, at time.Time) string {
	return "reports_" + at.UTC().Format("20060102_150405") + format.Extension
}

// Generator renders export rows in the supported formats
type Generator struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator creates a new export generator
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger, now: time.Now}
}

// Generate dispatches to the renderer for format
func (g *Generator) Generate(format Format, rows []Row) (*File, error) {
	switch format.Key {
	case FormatExcel.Key:
		return g.Excel(rows)
	case FormatCSV.Key:
		return g.CSV(rows)
	case FormatText.Key:
		return g.Text(rows)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, format.Key)
}

// Excel renders rows as a single-sheet workbook
func (g *Generator) Excel(rows []Row) (*File, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#D3D3D3"},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	dateFmt := excelDateFmt
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}

	widths := make([]int, len(Header))
	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(h)
	}

	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(sheetName, first, last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for r, row := range rows {
		values := []interface{}{
			row.RequestDate,
			string(row.Status),
			row.MeterSerialNumber,
			row.LastIndex,
			row.ReadingTime,
			row.SerialNumber,
			row.VoltageValue,
			row.CurrentValue,
		}
		rendered := row.Strings()

		for c, value := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)

			if t, ok := value.(time.Time); ok {
				if t.IsZero() {
					continue
				}
				if err := f.SetCellValue(sheetName, cell, t); err != nil {
					return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
				}
				if err := f.SetCellStyle(sheetName, cell, cell, dateStyle); err != nil {
					return nil, fmt.Errorf("failed to style cell %s: %w", cell, err)
				}
			} else if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}

			if n := utf8.RuneCountInString(rendered[c]); n > widths[c] {
				widths[c] = n
			}
		}
	}

	// excelize has no autofit, size columns from the rendered text
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(w + 2)
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return g.file(FormatExcel, buf.Bytes(), len(rows)), nil
}

// CSV renders rows comma separated
func (g *Generator) CSV(rows []Row) (*File, error) {
	data, err := delimited(rows, ',')
	if err != nil {
		return nil, err
	}
	return g.file(FormatCSV, data, len(rows)), nil
}

// Text renders rows tab separated
func (g *Generator) Text(rows []Row) (*File, error) {
	data, err := delimited(rows, '\t')
	if err != nil {
		return nil, err
	}
	return g.file(FormatText, data, len(rows)), nil
}

func delimited(rows []Row, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.Strings()); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}

	return buf.Bytes(), nil
}

func (g *Generator) file(format Format, data []byte, rows int) *File {
	name := FileName(format, g.now())
	g.logger.Info("export generated",
		zap.String("format", format.Key),
		zap.String("file_name", name),
		zap.Int("rows", rows),
		zap.Int("bytes", len(data)),
	)
	return &File{
		Data:        data,
		ContentType: format.ContentType,
		FileName:    name,
	}
}
