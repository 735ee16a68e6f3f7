package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for meter reading timestamps, tried in order
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999", // zone-less, as emitted by the meter service
	"2006-01-02 15:04:05",         // export display format
	"02/01/2006 15:04:05",         // DD/MM/YYYY HH:mm:ss
}

// ParseMeterTimestamp parses a reading timestamp in any of the known layouts.
// Zone-less values are interpreted as UTC.
func ParseMeterTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", value, lastErr)
}

// FormatDisplay renders t the way exports show dates; the zero time renders empty
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
