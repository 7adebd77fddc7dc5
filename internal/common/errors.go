// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Remote store errors.
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrMaxRetries   = errors.New("max retries exceeded")
	ErrSyncConflict = errors.New("sheet changed since index snapshot")

	// Merge errors.
	ErrJobCreation    = errors.New("failed to create ingestion job")
	ErrAlreadyMatched = errors.New("record is already matched")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRateLimit reports whether an error is the remote store's
// rate-limiting signal. Only these errors are retried; anything else
// fails fast so real bugs are not masked by backoff loops.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimit) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		if strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota exceeded") {
			return true
		}
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
