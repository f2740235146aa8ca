// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// ErrNotFound means a referenced transaction, category, account or rule does not exist.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrValidation means the caller supplied an unknown enum value or a dangling reference.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientData means training was requested with too few confirmed samples.
	ErrInsufficientData = errors.New("not enough training data")

	// ErrNoModel means the statistical classifier has not been trained.
	ErrNoModel = errors.New("no trained model")
	// ErrNoPrediction means a loaded model could not predict a transaction.
	ErrNoPrediction = errors.New("model could not make a prediction")

	// ErrClassifierUnavailable means no external text classifier is configured.
	ErrClassifierUnavailable = errors.New("text classifier unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError wraps ErrValidation with the offending field.
func ValidationError(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, fmt.Sprintf(format, args...))
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

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
