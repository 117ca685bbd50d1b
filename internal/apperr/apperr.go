// Package apperr carries the typed errors the domain services raise and the
// API layer maps to HTTP statuses. Services never return raw storage errors
// to handlers — they either translate them to one of these codes or wrap
// them as Internal.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeNotFound      Code = "NOT_FOUND"
	CodeForbidden     Code = "FORBIDDEN"
	CodeConflict      Code = "CONFLICT"
	CodeConfiguration Code = "CONFIGURATION"
	CodeInternal      Code = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes two apperr errors equal when their codes match, so tests and
// callers can do errors.Is(err, apperr.Validation("")) style checks against
// sentinel values without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error    { return New(CodeValidation, msg) }
func NotFound(msg string) error      { return New(CodeNotFound, msg) }
func Forbidden(msg string) error     { return New(CodeForbidden, msg) }
func Conflict(msg string) error      { return New(CodeConflict, msg) }
func Configuration(msg string) error { return New(CodeConfiguration, msg) }

// Internal wraps an unexpected failure. The cause is kept for logs; the
// message is what the client sees.
func Internal(msg string, cause error) error {
	return &Error{Code: CodeInternal, Message: msg, Cause: cause}
}

// CodeOf extracts the code from any error in the chain, defaulting to
// CodeInternal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status the API layer responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	default:
		// Configuration errors are server-side misconfiguration: 500.
		return http.StatusInternalServerError
	}
}
