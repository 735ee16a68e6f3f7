package meter

import (
	"encoding/json"
	"time"

	"github.com/septivank/meter-report-service/tools/timeparser"
)

// Snapshot is a point-in-time reading of a meter
type Snapshot struct {
	SerialNumber string    `json:"serialNumber"`
	ReadingTime  time.Time `json:"readingTime"`
	LastIndex    float64   `json:"lastIndex"`
	VoltageValue float64   `json:"voltageValue"`
	CurrentValue float64   `json:"currentValue"`
}

// IsEmpty reports whether the snapshot carries no data at all
func (s Snapshot) IsEmpty() bool {
	return s.SerialNumber == "" && s.ReadingTime.IsZero() &&
		s.LastIndex == 0 && s.VoltageValue == 0 && s.CurrentValue == 0
}

// UnmarshalJSON accepts reading times with or without a zone offset
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	var raw struct {
		plain
		ReadingTime *string `json:"readingTime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Snapshot(raw.plain)
	s.ReadingTime = time.Time{}
	if raw.ReadingTime != nil && *raw.ReadingTime != "" {
		t, err := timeparser.ParseMeterTimestamp(*raw.ReadingTime)
		if err != nil {
			return err
		}
		s.ReadingTime = t
	}
	return nil
}

// ParseSnapshot decodes stored report content into a snapshot
func ParseSnapshot(content string) (Snapshot, error) {
	var s Snapshot
	err := json.Unmarshal([]byte(content), &s)
	return s, err
}
