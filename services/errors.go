package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by stores.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
)

type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindUnauthorized
	KindNotFound
	KindInvalidState
	KindForbidden
	KindConflict
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "unexpected"
	}
}

// Error is the error type returned by every service operation. Message is
// safe to show to the caller; Err is kept for server-side logging.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Message: msg} }
func InvalidState(msg string) error { return &Error{Kind: KindInvalidState, Message: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }
func Invalid(msg string) error      { return &Error{Kind: KindValidation, Message: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }

// Unexpected wraps an infrastructure failure. Already typed errors pass
// through unchanged so they can be returned from transactions as-is.
func Unexpected(msg string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindUnexpected, Message: msg, Err: err}
}

// KindOf reports the kind of err, KindUnexpected for untyped errors.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnexpected
}

// notFoundOr maps a store not-found to a typed NotFound and anything else to
// Unexpected.
func notFoundOr(err error, notFoundMsg, unexpectedMsg string) error {
	if errors.Is(err, ErrRecordNotFound) {
		return NotFound(notFoundMsg)
	}
	return Unexpected(unexpectedMsg, err)
}
