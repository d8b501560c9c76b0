// Package apperr defines the error taxonomy shared by every pipeline stage
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by the stage that produced it.
type Kind string

const (
	KindInput      Kind = "input"
	KindUpstream   Kind = "upstream"
	KindParse      Kind = "parse"
	KindValidation Kind = "validation"
	KindRender     Kind = "render"
	KindSync       Kind = "sync"
	KindInternal   Kind = "internal"
)

// Error is the concrete error carried across stage boundaries.
type Error struct {
	Kind    Kind
	Message string
	// Details is an optional human-readable diagnostic (validator reason,
	// combined parser diagnostics).
	Details string
	// Logs holds the tail of tool output for render and sync failures.
	Logs string
	// StatusCode is the provider HTTP status for upstream failures.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, apperr.Render) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	Input      = &Error{Kind: KindInput}
	Upstream   = &Error{Kind: KindUpstream}
	Parse      = &Error{Kind: KindParse}
	Validation = &Error{Kind: KindValidation}
	Render     = &Error{Kind: KindRender}
	Sync       = &Error{Kind: KindSync}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Inputf(format string, args ...any) *Error    { return newf(KindInput, format, args...) }
func Parsef(format string, args ...any) *Error    { return newf(KindParse, format, args...) }
func Renderf(format string, args ...any) *Error   { return newf(KindRender, format, args...) }
func Syncf(format string, args ...any) *Error     { return newf(KindSync, format, args...) }
func Internalf(format string, args ...any) *Error { return newf(KindInternal, format, args...) }

// NewUpstream records a non-2xx provider response.
func NewUpstream(provider string, status int, body string) *Error {
	return &Error{
		Kind:       KindUpstream,
		Message:    fmt.Sprintf("%s API error: %d", provider, status),
		Details:    body,
		StatusCode: status,
	}
}

// NewValidation wraps a validator rejection reason.
func NewValidation(reason string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid animation script", Details: reason}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps caller mistakes to 400 and everything else to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether an upstream failure is rate limiting or a
// server-side error.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindUpstream {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
