// Package apperr defines the closed set of operational error kinds returned by
// the service layer and translated to HTTP responses by the server's error handler.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an operational error.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindPasswordMismatch      Kind = "password_mismatch"
	KindInvalidQuery          Kind = "invalid_query"
	KindUnauthenticated       Kind = "unauthenticated"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindDuplicate             Kind = "duplicate"
	KindNotificationFailed    Kind = "notification_failed"
	KindInternal              Kind = "internal"
)

var defaultStatus = map[Kind]int{
	KindValidation:            http.StatusBadRequest,
	KindPasswordMismatch:      http.StatusBadRequest,
	KindInvalidQuery:          http.StatusBadRequest,
	KindUnauthenticated:       http.StatusUnauthorized,
	KindInvalidCredentials:    http.StatusUnauthorized,
	KindInvalidOrExpiredToken: http.StatusBadRequest,
	KindForbidden:             http.StatusForbidden,
	KindNotFound:              http.StatusNotFound,
	KindDuplicate:             http.StatusBadRequest,
	KindNotificationFailed:    http.StatusInternalServerError,
	KindInternal:              http.StatusInternalServerError,
}

// Error is an operational error: its Message is safe to show to the client.
// Err optionally carries the underlying cause, which is never shown in production.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

// New returns an Error of the given kind with the kind's default status.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Status: StatusOf(kind)}
}

// Wrap is New with an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	e := New(kind, message)
	e.Err = err
	return e
}

// WithStatus returns a copy of e that responds with status instead of the kind default.
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.Status = status
	return &c
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the default HTTP status for kind; unknown kinds map to 500.
func StatusOf(kind Kind) int {
	if s, ok := defaultStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries an operational error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
