package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that the provider has no record for the identifier.
	ErrNotFound = errors.New("not found")

	// ErrTransient indicates a network failure, timeout, or provider-side error
	// that may succeed on retry.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited indicates that the provider signalled throttling.
	ErrRateLimited = errors.New("rate limited")

	// ErrCacheCorrupt indicates that persisted cache data could not be parsed.
	ErrCacheCorrupt = errors.New("cache corrupt")

	// ErrFallbackRejected indicates that the fallback provider returned an
	// unusable record (zero citations or no match).
	ErrFallbackRejected = errors.New("fallback rejected")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// ErrorKind is the retry-relevant classification of a lookup failure.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindTransient   ErrorKind = "transient"
	ErrorKindCancelled   ErrorKind = "cancelled"
	ErrorKindRejected    ErrorKind = "rejected"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.Source)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
// Unless its cause says otherwise it is treated as transient.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API error: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error, followed by ErrTransient.
func (e *ExternalAPIError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Cause, ErrTransient}
	}
	return []error{ErrTransient}
}

// RejectedError explains why a fallback record was discarded.
type RejectedError struct {
	Source string
	Reason string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s result rejected: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RejectedError) Unwrap() error {
	return ErrFallbackRejected
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewRejectedError creates a new RejectedError.
func NewRejectedError(source, reason string) *RejectedError {
	return &RejectedError{
		Source: source,
		Reason: reason,
	}
}

// IsNotFound reports whether err means the provider has no such record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited reports whether err is a throttling signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Classify maps an arbitrary lookup error onto an ErrorKind.
// Rate limiting takes precedence over not-found, and anything unrecognised
// is considered transient.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return ErrorKindCancelled
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimited
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrFallbackRejected):
		return ErrorKindRejected
	default:
		return ErrorKindTransient
	}
}
