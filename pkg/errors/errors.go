package errors

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the orchestration engine can return.
// The transport layer maps kinds to protocol status codes; the engine
// and its collaborators only ever deal in kinds.
type Kind string

const (
	// Structural failure raised while building a graph model
	KindMalformedGraph Kind = "MALFORMED_GRAPH"

	// Domain validation failures
	KindDuplicateIdentifier Kind = "DUPLICATE_IDENTIFIER"
	KindDanglingEdge        Kind = "DANGLING_EDGE"
	KindUselessInformation  Kind = "USELESS_INFORMATION"
	KindScopeViolation      Kind = "SCOPE_VIOLATION"

	// Lifecycle failures
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	KindNotFound      Kind = "NOT_FOUND"

	// Authentication failures
	KindUnauthorized Kind = "UNAUTHORIZED"

	// Controller adapter failures
	KindAdapterTransient Kind = "ADAPTER_TRANSIENT"
	KindAdapterFatal     Kind = "ADAPTER_FATAL"

	// Safety net for anything unclassified
	KindInternal Kind = "INTERNAL"
)

// AppError carries a failure kind plus a human-readable message through
// the application layers.
type AppError struct {
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithDetail attaches a single detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Constructor functions for the failure kinds

// NewMalformedGraphError reports a violated structural invariant.
func NewMalformedGraphError(message string) *AppError {
	return &AppError{Kind: KindMalformedGraph, Message: message}
}

// NewAlreadyExistsError reports a graph identity collision within a tenant.
func NewAlreadyExistsError(graphID string) *AppError {
	return &AppError{
		Kind:    KindAlreadyExists,
		Message: fmt.Sprintf("graph %s already exists", graphID),
	}
}

// NewNotFoundError reports a missing resource. Cross-tenant access is
// reported through this same constructor so callers cannot distinguish
// "not yours" from "not there".
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewUnauthorizedError reports a failed authentication.
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{Kind: KindUnauthorized, Message: message}
}

// NewScopeViolationError reports a reference to a resource outside the
// requesting tenant's scope.
func NewScopeViolationError(message string) *AppError {
	return &AppError{Kind: KindScopeViolation, Message: message}
}

// NewAdapterTransientError reports a retryable controller failure.
func NewAdapterTransientError(message string, err error) *AppError {
	return &AppError{
		Kind:      KindAdapterTransient,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// NewAdapterFatalError reports a non-retryable controller failure.
func NewAdapterFatalError(message string, err error) *AppError {
	return &AppError{Kind: KindAdapterFatal, Message: message, Cause: err}
}

// NewInternalError reports an unexpected failure.
func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Cause: err}
}

// NewValidationError builds an error for one of the domain validation kinds.
func NewValidationError(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Helper functions

// GetAppError extracts an AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsKind checks if an error carries a specific failure kind
func IsKind(err error, kind Kind) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Kind == kind
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsRetryable reports whether the caller may safely retry the same
// operation with the same identity.
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// Internalize guarantees every error leaving the engine carries a kind.
// Unclassified errors are wrapped as KindInternal so they can be logged
// with context and surfaced opaquely.
func Internalize(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	return NewInternalError(message, err)
}
