package lamps

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/uvdose/uvdose/pkg/types"
)

var (
	// ErrUnknownSystem means the native engine does not report the system.
	ErrUnknownSystem = errors.New("lamps: unknown system type")
	// ErrNoSpecification means the catalog has no operating limits for the system.
	ErrNoSpecification = errors.New("lamps: no specification for system")
	// ErrLampCountUnavailable means the engine reported zero lamps.
	ErrLampCountUnavailable = errors.New("lamps: lamp count unavailable")
)

// RangeError lists every parameter that fell outside its operating limits,
// keyed by field name ("flow", "uvt").
type RangeError struct {
	Violations map[string]types.FieldViolation
}

func (e *RangeError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "lamps: out of range: " + strings.Join(fields, ", ")
}

// LampIndexError is a specific_lamps key that is not a lamp of the system.
type LampIndexError struct {
	Setting   string // "power" or "efficiency"
	Index     string // the key as supplied
	LampCount uint32
}

func (e *LampIndexError) Error() string {
	return fmt.Sprintf("Invalid lamp index %s. System has %d lamps", e.Index, e.LampCount)
}
