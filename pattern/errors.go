package pattern

import (
	"fmt"
	"strings"
)

// ValidationError is returned when a value does not match its pattern. It carries every
// mismatch, not just the first.
type ValidationError struct {
	Mismatches []Mismatch
}

// NewValidationError returns a *ValidationError for the mismatches, or nil if there are none.
func NewValidationError(mismatches []Mismatch) error {
	if len(mismatches) == 0 {
		return nil
	}
	return &ValidationError{Mismatches: mismatches}
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Mismatches)+1)
	lines = append(lines, fmt.Sprintf("validation failed (%d mismatch(es))", len(e.Mismatches)))
	for _, m := range e.Mismatches {
		lines = append(lines, "  "+m.String())
	}
	return strings.Join(lines, "\n")
}
