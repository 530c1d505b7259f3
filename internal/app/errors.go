package service

import (
	"errors"
	"fmt"
)

// Sentinel kinds for caller errors. Store errors (not found, conflict) pass
// through wrapped and stay matchable with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrScenarioMissing is returned when an item is answered before drill
	// content with a correct action was attached.
	ErrScenarioMissing = fmt.Errorf("%w: scenario with correct_action not attached", ErrInvalidInput)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
