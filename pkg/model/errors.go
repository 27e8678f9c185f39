package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrInvalidSpec      ErrorCode = "INVALID_SPEC"
	ErrInvalidState     ErrorCode = "INVALID_STATE"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrSequenceConflict ErrorCode = "SEQUENCE_CONFLICT"
	ErrEngine           ErrorCode = "ENGINE_ERROR"
	ErrTimeout          ErrorCode = "TIMEOUT"
	ErrValidation       ErrorCode = "VALIDATION_ERROR"
	ErrInternal         ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the GoAPS API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewInvalidSpecError creates an INVALID_SPEC APIError with field details.
func NewInvalidSpecError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrInvalidSpec, Message: msg, Details: details}
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewInvalidStateError creates an INVALID_STATE APIError.
func NewInvalidStateError(msg string) *APIError {
	return &APIError{Code: ErrInvalidState, Message: msg}
}

// NewSequenceConflictError creates a SEQUENCE_CONFLICT APIError.
func NewSequenceConflictError(msg string) *APIError {
	return &APIError{Code: ErrSequenceConflict, Message: msg}
}

// CodeOf extracts the ErrorCode from err, or ErrInternal if err carries none.
func CodeOf(err error) ErrorCode {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var transErr *InvalidTransitionError
	if errors.As(err, &transErr) {
		return ErrInvalidState
	}
	return ErrInternal
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}
