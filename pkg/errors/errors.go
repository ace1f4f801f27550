// Package errors provides custom error types for the contactsync system.
// These errors enable programmatic error classification — in particular the
// transient/permanent split that drives retry behavior in the change
// executor — and improved debugging throughout the application.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's chain matches target.
// It's an alias for the standard library errors.Is.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// It's an alias for the standard library errors.As.
var As = errors.As

// Common sentinel errors for the contactsync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indicates that the account rejected the caller's credentials
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates that an account's API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrAccountUnavailable indicates that an account's API is temporarily unavailable
	ErrAccountUnavailable = errors.New("account unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")
)

// IsTransient reports whether an error is worth retrying: rate limits,
// timeouts, and 5xx-class account failures. Validation, not-found, and
// forbidden errors are permanent and must not be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrAccountUnavailable)
}

// APIError represents an error returned by an account's contacts API.
type APIError struct {
	Account    string // Account label ("account1", "account2")
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Account, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Account, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support, classifying by HTTP status.
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == 429:
		return target == ErrRateLimited
	case e.StatusCode == 404:
		return target == ErrNotFound
	case e.StatusCode == 401 || e.StatusCode == 403:
		return target == ErrForbidden
	case e.StatusCode == 408:
		return target == ErrTimeout
	case e.StatusCode >= 500:
		return target == ErrAccountUnavailable
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(account string, statusCode int, message string) *APIError {
	return &APIError{
		Account:    account,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// LedgerError represents a failure reading or writing the match ledger.
type LedgerError struct {
	Operation string // "load", "save", "commit"
	Path      string
	Err       error
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("ledger %s failed for %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("ledger %s failed: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// ArbiterError represents a failure of the external match arbiter.
// Arbiter failures never fail a cycle; affected pairs default to unmatched.
type ArbiterError struct {
	Batch   int // Batch index within the cycle
	Message string
	Err     error
}

// Error implements the error interface
func (e *ArbiterError) Error() string {
	return fmt.Sprintf("arbiter batch %d: %s", e.Batch, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ArbiterError) Unwrap() error {
	return e.Err
}

// OperationError attributes a failure to a single plan operation, carrying
// the target account and resource so SyncResult can report it.
type OperationError struct {
	Account  string
	Kind     string // "create", "update", "delete"
	Resource string
	Err      error
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("failed to %s %s on %s: %v", e.Kind, e.Resource, e.Account, e.Err)
	}
	return fmt.Sprintf("failed to %s on %s: %v", e.Kind, e.Account, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// WrapIO wraps a filesystem error with operation and path context.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("IO error during %s of %s: %w", operation, path, err)
}
