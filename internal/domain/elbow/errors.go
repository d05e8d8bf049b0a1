package elbow

import (
	"errors"
	"fmt"
)

// Sentinel kinds for sweep errors. The typed errors below match them via errors.Is.
var (
	ErrInvalidSweep    = errors.New("invalid sweep")
	ErrDegenerateSweep = errors.New("degenerate sweep")
)

// InvalidSweepError reports malformed selector input.
type InvalidSweepError struct {
	// Index of the offending point, or -1 when the whole sweep is at fault.
	Index  int
	Reason string
}

func (e *InvalidSweepError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid sweep: %s", e.Reason)
	}
	return fmt.Sprintf("invalid sweep: %s at index %d", e.Reason, e.Index)
}

// Is reports whether target is ErrInvalidSweep.
func (e *InvalidSweepError) Is(target error) bool { return target == ErrInvalidSweep }

// DegenerateSweepError reports a zero-width parameter range.
type DegenerateSweepError struct {
	First float64
	Last  float64
}

func (e *DegenerateSweepError) Error() string {
	return fmt.Sprintf("degenerate sweep: first and last parameter are both %g", e.First)
}

// Is reports whether target is ErrDegenerateSweep.
func (e *DegenerateSweepError) Is(target error) bool { return target == ErrDegenerateSweep }

func invalid(index int, reason string) error {
	return &InvalidSweepError{Index: index, Reason: reason}
}
