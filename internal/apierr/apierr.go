// Package apierr defines the uniform error envelope returned by every
// endpoint: {"error": {"code", "message", "status", "details"}}.
package apierr

import (
	"fmt"
	"net/http"
)

// Error is the API-facing error. Status is the HTTP status code the
// handler should respond with; Code is a stable machine-readable
// identifier; Details carries optional human-oriented context such as
// a "did you mean" hint.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Envelope wraps an Error under the "error" key for JSON rendering.
type Envelope struct {
	Err *Error `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// New constructs an Error with the given status, code and message.
func New(status int, code, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// Newf is New with Sprintf formatting for the message.
func Newf(status int, code, format string, args ...any) *Error {
	return New(status, code, fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of e carrying the details string.
func (e *Error) WithDetails(details string) *Error {
	out := *e
	out.Details = details
	return &out
}

// Wrap converts an arbitrary error into an Error. Existing *Error
// values pass through unchanged so handler code can rethrow freely.
func Wrap(err error, status int, code string) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	return New(status, code, err.Error())
}

// Convenience constructors for the taxonomy used across handlers.

func BadRequest(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func UnsupportedMedia(message string) *Error {
	return New(http.StatusUnsupportedMediaType, "unsupported_media_type", message)
}

func RateLimited(message string) *Error {
	return New(http.StatusTooManyRequests, "rate_limited", message)
}

func BadGateway(code, message string) *Error {
	return New(http.StatusBadGateway, code, message)
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, "internal_server_error", message)
}
