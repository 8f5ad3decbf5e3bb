package job

import (
	"errors"
	"fmt"
)

// Static errors for job operations.
var (
	// ErrNotFound is returned when a job cannot be found by ID.
	ErrNotFound = errors.New("job not found")
	// ErrJobExists is returned when creating a job whose ID is already taken.
	ErrJobExists = errors.New("job already exists")
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrProviderUnavailable is returned when no provider is configured for
	// the requested mode and quality.
	ErrProviderUnavailable = errors.New("no provider configured for requested mode")
)

// ValidationError reports a missing or invalid submission input. It is
// surfaced to the caller as a 4xx with a field-level message and is never
// retried.
type ValidationError struct {
	// Field is the offending request field, e.g. "audio_data".
	Field string
	// Message describes what is wrong with the field.
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// newValidationError builds a ValidationError for a field.
func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProviderError reports an upstream submission failure. Auth, quota,
// malformed-payload and transport failures are distinguishable through the
// wrapped error for logging, but collapse to this one kind at the
// dispatcher boundary.
type ProviderError struct {
	// Provider is the name of the adapter that failed.
	Provider string
	// Err is the underlying provider client error.
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
