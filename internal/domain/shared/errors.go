package shared

import (
	"fmt"
	"strings"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeAuthFailed          = "AUTH_FAILED"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNetworkError        = "NETWORK_ERROR"
	CodePartialBatchFailure = "PARTIAL_BATCH_FAILURE"
	CodeViewerBlocked       = "VIEWER_BLOCKED"
)

// Sentinel errors. Typed errors below match these through errors.Is.
var (
	ErrAuth           = NewDomainError(CodeAuthFailed, "Login failed")
	ErrSessionExpired = NewDomainError(CodeSessionExpired, "Session expired")
	ErrValidation     = NewDomainError(CodeValidationFailed, "Validation failed")
	ErrNetwork        = NewDomainError(CodeNetworkError, "Request failed")
	ErrPartialBatch   = NewDomainError(CodePartialBatchFailure, "Some items in the batch failed")
	ErrViewerBlocked  = NewDomainError(CodeViewerBlocked, "Viewer could not be opened")
)

// AuthError is returned when the backend rejects credentials.
// Detail is the backend's message and is meant for inline display.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return ErrAuth.Message
	}
	return e.Detail
}

// Is reports whether target is ErrAuth.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is raised locally, before any request is sent.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// NewValidationError creates a validation error with optional field details
func NewValidationError(message string, fields ...FieldError) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NetworkError wraps a transport failure or a non-success backend response.
// StatusCode is 0 when no response was received.
type NetworkError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *NetworkError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// UserMessage returns the backend detail when present, otherwise fallback.
func (e *NetworkError) UserMessage(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	return fallback
}

// PartialBatchFailure reports that some items of a bulk receipt operation failed.
// Individual failures are logged, only the aggregate is surfaced.
type PartialBatchFailure struct {
	Total     int
	Succeeded int
	FailedIDs []int64
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("%d of %d items failed", e.Total-e.Succeeded, e.Total)
}

// Is reports whether target is ErrPartialBatch.
func (e *PartialBatchFailure) Is(target error) bool {
	return target == ErrPartialBatch
}
