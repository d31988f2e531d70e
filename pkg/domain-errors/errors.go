// Package domainerrors defines coded errors shared across habita modules.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate
// them into coded errors from this package so handlers can map codes to HTTP
// statuses without inspecting store internals.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error class. Codes are part of the API contract: they are
// rendered verbatim in the JSON error envelope.
type Code string

const (
	CodeValidation            Code = "validation"
	CodeNotFound              Code = "not_found"
	CodeConflict              Code = "conflict"
	CodeInvalidTransition     Code = "invalid_transition"
	CodePreconditionNotMet    Code = "precondition_not_met"
	CodeProviderNotAssignable Code = "provider_not_assignable"
	CodeForbiddenField        Code = "forbidden_field"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeInternal              Code = "internal_error"
	CodeNotificationFailed    Code = "notification_failed"
)

// Error carries a code plus a human-readable message. Message is safe to show
// to API callers except for CodeInternal, where httputil suppresses it.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// HasCode reports whether err is (or wraps) a coded error with the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so unexpected failures never leak as client faults.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err, empty for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
