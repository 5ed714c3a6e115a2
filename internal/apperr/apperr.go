// Package apperr carries the small set of error kinds the HTTP boundary
// maps to status codes, so components never need to know about net/http.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a closed enum of the error categories the transport layer understands.
type Kind string

const (
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Error wraps an underlying cause with a client-facing kind and message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func BadRequest(message string) *Error       { return newErr(KindBadRequest, message, nil) }
func NotFound(message string) *Error         { return newErr(KindNotFound, message, nil) }
func Conflict(message string) *Error         { return newErr(KindConflict, message, nil) }
func Internal(message string, err error) *Error { return newErr(KindInternal, message, err) }

// StatusCode maps an error's Kind to an HTTP status, defaulting to 500 for
// anything that isn't a recognized *Error.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindBadRequest:
			return http.StatusBadRequest
		case KindNotFound:
			return http.StatusNotFound
		case KindConflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// Code returns the client-facing error code string for an error, defaulting
// to "internal" for unrecognized errors.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return string(e.Kind)
	}
	return string(KindInternal)
}
