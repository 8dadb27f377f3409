package directory

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy for directory calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the directory took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the directory returned an unparseable or error payload
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorOutage indicates the directory is unreachable or returned 5xx
	ErrorOutage ErrorCategory = "provider_outage"

	// ErrorRateLimited indicates the directory throttled the request
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorRejected indicates the directory refused the request (4xx)
	ErrorRejected ErrorCategory = "rejected"

	// ErrorInternal indicates an unexpected local failure
	ErrorInternal ErrorCategory = "internal"
)

// DirectoryError wraps directory failures with normalized categorization.
type DirectoryError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *DirectoryError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("directory [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("directory [%s]: %s", e.Category, e.Message)
}

func (e *DirectoryError) Unwrap() error {
	return e.Underlying
}

// NewDirectoryError creates a categorized directory error.
func NewDirectoryError(category ErrorCategory, message string, underlying error) *DirectoryError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &DirectoryError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether err is a transient directory failure. Nothing
// in this module retries; the flag is surfaced in logs.
func IsRetryable(err error) bool {
	var de *DirectoryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	var de *DirectoryError
	if errors.As(err, &de) {
		return de.Category
	}
	return ErrorInternal
}
