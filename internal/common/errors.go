package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error classes. Every error surfaced by the pipeline wraps exactly one of these.
var (
	ErrInput      = errors.New("input error")
	ErrAdapter    = errors.New("adapter error")
	ErrValidation = errors.New("validation failed")
	ErrInvariant  = errors.New("invariant violation")
	ErrNotFound   = errors.New("resource not found")
)

// Specific failures callers match on with errors.Is.
var (
	ErrInFlight       = NewAppError("IN_FLIGHT", "another adapter call is in flight for this entry", ErrInput)
	ErrSuperseded     = NewAppError("SUPERSEDED", "document was replaced while the call was in flight", ErrInput)
	ErrNoDocument     = NewAppError("NO_DOCUMENT", "no document uploaded", ErrInput)
	ErrEmptyDocument  = NewAppError("EMPTY_DOCUMENT", "document has no content", ErrInput)
	ErrUnsupportedFmt = NewAppError("UNSUPPORTED_FORMAT", "document format is not pdf, image or text", ErrInput)
	ErrNoText         = NewAppError("NO_TEXT", "no extracted text", ErrInput)
	ErrNoRecord       = NewAppError("NO_RECORD", "no accounting record", ErrInput)
	ErrNoEntry        = NewAppError("NO_ENTRY", "no ledger entry", ErrInput)
	ErrFrozen         = NewAppError("FROZEN", "entry is sealed and cannot change", ErrInvariant)
	ErrScoreMissing   = NewAppError("SCORE_MISSING", "entry has no credibility score", ErrInvariant)
	ErrNotApproved    = NewAppError("NOT_APPROVED", "entry has not been approved", ErrInvariant)
	ErrNotDeletable   = NewAppError("NOT_DELETABLE", "sealed entries cannot be deleted", ErrInvariant)
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func InputErrorf(format string, args ...interface{}) error {
	return NewAppError("INPUT_ERROR", fmt.Sprintf(format, args...), ErrInput)
}

func InvariantErrorf(format string, args ...interface{}) error {
	return NewAppError("INVARIANT_VIOLATION", fmt.Sprintf(format, args...), ErrInvariant)
}

// AdapterError marks err as a failed collaborator call. The original error stays reachable.
func AdapterError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewAppError("ADAPTER_ERROR", op, fmt.Errorf("%w: %w", ErrAdapter, err))
}

// ValidationErrorf marks a collaborator payload as semantically invalid.
func ValidationErrorf(format string, args ...interface{}) error {
	return NewAppError("VALIDATION_ERROR", fmt.Sprintf(format, args...), ErrValidation)
}

// Kind names the error class of err, or "internal" if it has none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrAdapter):
		return "adapter"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error class to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInFlight), errors.Is(err, ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAdapter):
		return http.StatusBadGateway
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvariant):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
