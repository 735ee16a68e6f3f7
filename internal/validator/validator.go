package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/septivank/meter-report-service/internal/db"
)

// ErrInvalidSerialNumber is returned for serial numbers that cannot identify a meter
var ErrInvalidSerialNumber = errors.New("invalid meter serial number")

// Validator checks report request input
type Validator struct {
	maxSerialLength int
}

// NewValidator creates a new validator; maxSerialLength <= 0 uses the stored column width
func NewValidator(maxSerialLength int) *Validator {
	if maxSerialLength <= 0 {
		maxSerialLength = db.MeterSerialNumberLength
	}
	return &Validator{maxSerialLength: maxSerialLength}
}

// NormalizeSerialNumber trims the serial number and validates it
func (v *Validator) NormalizeSerialNumber(serial string) (string, error) {
	serial = strings.TrimSpace(serial)

	if serial == "" {
		return "", fmt.Errorf("%w: empty serial number", ErrInvalidSerialNumber)
	}

	if len(serial) > v.maxSerialLength {
		return "", fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidSerialNumber, serial, v.maxSerialLength)
	}

	for _, r := range serial {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", fmt.Errorf("%w: %q must be alphanumeric", ErrInvalidSerialNumber, serial)
		}
	}

	return serial, nil
}
