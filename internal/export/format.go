package export

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for export format keys outside the supported set
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format describes an export output
type Format struct {
	Key         string
	ContentType string
	Extension   string
}

var (
	FormatExcel = Format{Key: "excel", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Extension: ".xlsx"}
	FormatCSV   = Format{Key: "csv", ContentType: "text/csv", Extension: ".csv"}
	FormatText  = Format{Key: "txt", ContentType: "text/plain", Extension: ".txt"}
)

// Formats lists the supported formats in display order
var Formats = []Format{FormatExcel, FormatCSV, FormatText}

// ParseFormat resolves a format key, ignoring case and surrounding spaces
func ParseFormat(key string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, f := range Formats {
		if f.Key == normalized {
			return f, nil
		}
	}

	keys := make([]string, 0, len(Formats))
	for _, f := range Formats {
		keys = append(keys, f.Key)
	}
	return Format{}, fmt.Errorf("%w %q: supported formats are %s", ErrUnsupportedFormat, key, strings.Join(keys, ", "))
}
