package errors

import (
	"errors"
	"fmt"
)

// RagError is the structured error type for ragcore.
// It provides rich context for error handling, logging, and user presentation.
type RagError struct {
	// Code is the unique error code (e.g., "ERR_301_SOURCE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Source, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RagError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RagError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RagError.
func (e *RagError) Is(target error) bool {
	if t, ok := target.(*RagError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RagError) WithDetail(key, value string) *RagError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *RagError) WithSuggestion(suggestion string) *RagError {
	e.Suggestion = suggestion
	return e
}

// New creates a new RagError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RagError {
	return &RagError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RagError from an existing error.
// The error's message becomes the RagError message.
func Wrap(code string, err error) *RagError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
// Configuration errors are fatal and surface at startup, never per request.
func ConfigError(message string, cause error) *RagError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// SourceUnavailable creates an error for a retrieval source that could not
// be reached or returned a failure. These are retryable and a single one
// degrades the response rather than failing it.
func SourceUnavailable(source string, cause error) *RagError {
	e := New(ErrCodeSourceUnavailable, fmt.Sprintf("source %q unavailable", source), cause)
	return e.WithDetail("source", source)
}

// AllSourcesFailed creates the error returned when every selected retrieval
// source failed for a query.
func AllSourcesFailed(cause error) *RagError {
	return New(ErrCodeAllSourcesFailed, "all selected retrieval sources failed", cause).
		WithSuggestion("check that the embedding service and stores are reachable")
}

// LookupMiss creates an error for a chunk ID that was returned by a ranked
// source but is absent from the chunk store.
func LookupMiss(chunkID string) *RagError {
	e := New(ErrCodeLookupMiss, fmt.Sprintf("chunk %q missing from store", chunkID), nil)
	return e.WithDetail("chunk_id", chunkID)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *RagError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RagError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a RagError with Retryable flag set.
func IsRetryable(err error) bool {
	var re *RagError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var re *RagError
	if errors.As(err, &re) {
		return re.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether err carries the given error code anywhere in its
// chain.
func HasCode(err error, code string) bool {
	var re *RagError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// GetCode extracts the error code from a RagError.
// Returns empty string if not a RagError.
func GetCode(err error) string {
	var re *RagError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// GetCategory extracts the category from a RagError.
// Returns empty string if not a RagError.
func GetCategory(err error) Category {
	var re *RagError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}
