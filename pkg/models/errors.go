package models

import "fmt"

// ValidationError reports a malformed delivery or request. It is returned
// before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid delivery: " + e.Reason
	}
	return fmt.Sprintf("invalid delivery: %s %s", e.Field, e.Reason)
}
