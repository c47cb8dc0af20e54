package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Common error types for fanout
var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTargetNotFound indicates a target (cluster, subscription, device group) was not found
	ErrTargetNotFound = errors.New("target not found")

	// ErrConnectionFailed indicates a transport-level failure talking to a target
	ErrConnectionFailed = errors.New("connection failed")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates work was cancelled before it could finish
	ErrCancelled = errors.New("operation cancelled")

	// ErrResourceNotFound indicates a remote resource was not found
	ErrResourceNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrShutdown indicates the executor no longer accepts work
	ErrShutdown = errors.New("executor shut down")
)

// TargetError wraps an error with the name of the target it came from
type TargetError struct {
	Target string
	Err    error
}

// Error implements the error interface
func (e *TargetError) Error() string {
	return fmt.Sprintf("target %q: %v", e.Target, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *TargetError) Unwrap() error {
	return e.Err
}

// WrapTargetError wraps an error with target context
func WrapTargetError(target string, err error) error {
	if err == nil {
		return nil
	}
	return &TargetError{
		Target: target,
		Err:    err,
	}
}

// HTTPError carries the response metadata of a failed remote call.
// The executor reads StatusCode and ResponseHeader to classify the
// failure and to honor server-declared retry delays.
type HTTPError struct {
	Code    int
	Headers http.Header
	Err     error
}

// NewHTTPError creates an HTTPError. headers may be nil.
func NewHTTPError(code int, headers http.Header, err error) *HTTPError {
	return &HTTPError{
		Code:    code,
		Headers: headers,
		Err:     err,
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	text := http.StatusText(e.Code)
	if text == "" {
		text = "unknown status"
	}
	if e.Err != nil {
		return fmt.Sprintf("http %d %s: %v", e.Code, text, e.Err)
	}
	return fmt.Sprintf("http %d %s", e.Code, text)
}

// Unwrap returns the wrapped error
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of the failed response
func (e *HTTPError) StatusCode() int {
	return e.Code
}

// ResponseHeader returns the headers of the failed response
func (e *HTTPError) ResponseHeader() http.Header {
	return e.Headers
}

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i == 10 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// NewMultiError creates a new MultiError from a slice of errors
// It filters out nil errors
func NewMultiError(errs []error) *MultiError {
	m := &MultiError{
		Errors: make([]error, 0, len(errs)),
	}
	for _, err := range errs {
		m.Add(err)
	}
	return m
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Value != nil {
		return fmt.Sprintf("validation failed for field %q (value: %v): %s", v.Field, v.Value, v.Message)
	}
	return fmt.Sprintf("validation failed for field %q: %s", v.Field, v.Message)
}

// Is lets errors.Is(err, ErrInvalidConfig) match any validation failure
func (v *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrTargetNotFound)
}

// IsConnectionError checks if an error is a connection error
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsPermissionError checks if an error is a permission error
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsShutdown checks if an error was caused by submitting to a closed executor
func IsShutdown(err error) bool {
	return errors.Is(err, ErrShutdown)
}

// RetryableError marks an error as transient, optionally with a server-declared delay
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error implements the error interface
func (r *RetryableError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("retryable error (retry after %s): %v", r.RetryAfter, r.Err)
	}
	return fmt.Sprintf("retryable error: %v", r.Err)
}

// Unwrap returns the wrapped error
func (r *RetryableError) Unwrap() error {
	return r.Err
}

// IsRetryable checks if an error was explicitly marked retryable
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{
		Err:        err,
		RetryAfter: retryAfter,
	}
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case IsTimeout(err), errors.Is(err, context.DeadlineExceeded), apierrors.IsTimeout(err):
		return "Operation timed out. Please try again or increase the timeout value with --timeout flag."
	case IsCancelled(err), errors.Is(err, context.Canceled):
		return "Operation was cancelled."
	case IsShutdown(err):
		return "The executor is shutting down and no longer accepts work."
	case IsNotFound(err), apierrors.IsNotFound(err):
		return "Resource not found. Please check the target name or resource identifier."
	case IsConnectionError(err):
		return "Failed to connect to target. Please check your kubeconfig and network connectivity."
	case IsPermissionError(err), apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return "Permission denied. Please check your credentials and RBAC permissions."
	case errors.Is(err, ErrInvalidConfig):
		return "Invalid configuration. Please check your config file and command-line flags."
	default:
		return err.Error()
	}
}

// CombineErrors combines multiple errors into a single error
// Returns nil if all errors are nil
func CombineErrors(errs ...error) error {
	return NewMultiError(errs).ErrorOrNil()
}

// WrapErrorf wraps an error with a formatted message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
