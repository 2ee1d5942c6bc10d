// Package domainerrors carries coded errors across service boundaries.
// Services translate infrastructure sentinels into these; the transport layer
// translates the codes into HTTP statuses. Codes represent the caller-facing
// taxonomy, not the mechanism that produced the failure.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// CodeValidation marks malformed or inconsistent input. Nothing was
	// persisted and no external system was called.
	CodeValidation Code = "validation"

	// CodeNotFound marks a referenced entity that is absent from the
	// metadata store.
	CodeNotFound Code = "not_found"

	// CodeConflict marks a uniqueness violation (duplicate part, racing
	// registration row creation).
	CodeConflict Code = "conflict"

	// CodeExternal marks a failed call to one of the enablement services.
	// Previously persisted registration status remains valid; the caller may
	// retry with the same inputs.
	CodeExternal Code = "external"

	// CodeUnauthorized marks a missing or invalid credential.
	CodeUnauthorized Code = "unauthorized"

	// CodeBadRequest marks a request the transport layer could not decode.
	CodeBadRequest Code = "bad_request"

	CodeInternal Code = "internal"
)

// Error is a coded domain error. The wrapped cause, if any, stays reachable
// through errors.Is/As.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches coded errors by code and message, so callers can compare against
// a freshly constructed sentinel without sharing instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err, or anything it wraps, carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status so all handlers answer uniformly.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeExternal:
		return http.StatusBadGateway
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
