package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"

	ErrCodeKYCRequired       ErrorCode = "KYC_REQUIRED"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeCardBlocked       ErrorCode = "CARD_BLOCKED"

	// ErrCodeRPCMissing means a required database function is not installed.
	// Surfaced with an actionable message pointing at the missing migration.
	ErrCodeRPCMissing ErrorCode = "RPC_MISSING"

	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeExternalAPI   ErrorCode = "EXTERNAL_API_ERROR"
)

// AppError is the typed application error carried from services to the
// HTTP error handler, which maps Code to a status and response envelope.
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsUnauthorized reports whether the error must not leak detail to clients.
func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeUnauthorized
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal || e.Code == ErrCodeDatabaseError || e.Code == ErrCodeRPCMissing
}

// WithDetail attaches structured detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// NewUnauthorized builds the uniform unauthorized error. The reason stays
// server-side; clients only ever see {"ok":false}.
func NewUnauthorized(reason string) *AppError {
	return New(ErrCodeUnauthorized, reason)
}

func NewValidation(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for %q: %s", field, reason)).
		WithDetail("field", field)
}

func NewNotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewRPCMissing reports a missing ledger stored procedure with a message the
// operator can act on.
func NewRPCMissing(fn string, cause error) *AppError {
	return Wrapf(cause, ErrCodeRPCMissing,
		"database function %q is not installed; apply the pending migrations", fn).
		WithDetail("function", fn)
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
