package entity

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// The five error kinds the engine distinguishes at adapter/runtime boundaries.
// Adapters convert raw library errors into one of these at the point they
// occur; the Executor never needs to re-classify an error it receives.

// TransientNetworkError wraps a recoverable network failure (timeout, 5xx,
// connection reset). Never promoted to a whole-Executor retry by itself.
type TransientNetworkError struct{ Err error }

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}
func (e *TransientNetworkError) Unwrap() error { return e.Err }

// NotFoundError indicates the remote resource itself does not exist (e.g. a
// deleted subreddit, a 404 page). Surfaced as an empty fetch, never retried.
type NotFoundError struct{ Resource string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Resource) }

// RateLimitedError indicates a 429 or provider-specific rate limit. The run
// is abandoned rather than slept through; the scheduler's next fire retries.
type RateLimitedError struct{ RetryAfter time.Duration }

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// StructuredOutputFailure indicates the model's response did not conform to
// the declared output schema. Never retried with perturbed inputs: if the
// model can't produce the schema, retrying is assumed futile.
type StructuredOutputFailure struct {
	Raw           string
	ValidationErr error
}

func (e *StructuredOutputFailure) Error() string {
	return fmt.Sprintf("structured output failure: %v", e.ValidationErr)
}
func (e *StructuredOutputFailure) Unwrap() error { return e.ValidationErr }

// ConfigurationMissingError indicates a required credential or config value
// is absent. Propagates upward; the interactive front-end is expected to
// prompt the user for it.
type ConfigurationMissingError struct{ Key string }

func (e *ConfigurationMissingError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Key)
}
