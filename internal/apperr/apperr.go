// Package apperr defines the typed failures surfaced by the widget and auth
// services. Callers match on kind with errors.Is against the sentinel values.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidation      Code = "VALIDATION"
	CodeDelivery        Code = "DELIVERY"
	CodeVerification    Code = "VERIFICATION"
	CodePersistence     Code = "PERSISTENCE"
	CodeForbidden       Code = "FORBIDDEN"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// Error carries a kind, a user-facing message and the underlying cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrDelivery        = &Error{Code: CodeDelivery, Message: "delivery failed"}
	ErrVerification    = &Error{Code: CodeVerification, Message: "verification failed"}
	ErrPersistence     = &Error{Code: CodePersistence, Message: "persistence failure"}
	ErrForbidden       = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrUnauthenticated = &Error{Code: CodeUnauthenticated, Message: "not signed in"}
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func Verification(format string, args ...any) *Error {
	return New(CodeVerification, fmt.Sprintf(format, args...))
}

// Persistence wraps a store failure unless it already carries a kind.
func Persistence(message string, cause error) error {
	var ae *Error
	if errors.As(cause, &ae) {
		return cause
	}
	return Wrap(CodePersistence, message, cause)
}

// CodeOf returns the kind of err, or "" when err carries none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Message returns the user-facing message of err without its cause.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
