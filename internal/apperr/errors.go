// Package apperr defines the error taxonomy shared by services and transports.
//
// Services return *Error values (or sentinels built from them); transports map Kind to a status code.
// errors.Is matches any two errors of the same Kind, so callers can test against the Kind sentinels.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindConflict
	KindBadRequest
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindBadRequest:
		return "Bad Request"
	case KindNotFound:
		return "Not Found"
	default:
		return "Internal Server Error"
	}
}

// Error is a typed application error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Kind sentinels for errors.Is checks.
var (
	Unauthorized = &Error{Kind: KindUnauthorized}
	Forbidden    = &Error{Kind: KindForbidden}
	Conflict     = &Error{Kind: KindConflict}
	BadRequest   = &Error{Kind: KindBadRequest}
	NotFound     = &Error{Kind: KindNotFound}
)

// New returns an error of kind k with message msg.
func New(k Kind, msg string) *Error { return &Error{Kind: k, Message: msg} }

// Newf returns an error of kind k with a formatted message.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of kind k with message msg that wraps err.
func Wrap(k Kind, msg string, err error) *Error { return &Error{Kind: k, Message: msg, Err: err} }

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err. Non-application errors yield a generic message.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}
