package booking

import (
	"fmt"

	"github.com/pkg/errors"
)

// Business failure kinds. Returned to the caller as structured outcomes,
// never logged as system faults
var (
	// ErrInvalidState - transition or acceptance not legal from the current status
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict - translator already booked at that time
	ErrConflict = errors.New("already booked that time")
	// ErrTooLate - translator cancellation inside the 24h window
	ErrTooLate = errors.New("too late to cancel")
	// ErrAlreadyCompleted - assignment completion requested twice
	ErrAlreadyCompleted = errors.New("already completed")
	// ErrNotFound - unknown job or user id
	ErrNotFound = errors.New("not found")
)

// ValidationError carries the offending field of a creation request
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid field '%s'", e.Field)
}

// NewValidationError creates an error for the field
func NewValidationError(field string) error {
	return &ValidationError{Field: field}
}
