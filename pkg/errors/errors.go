// Package errors defines the status-carrying error type the connection
// handler uses, so a failure maps straight onto the wire without
// re-inspecting its cause.
package errors

import (
	"fmt"
)

// Error carries the status the connection handler should reply with, the
// response code alongside the underlying cause.
type Error struct {
	Code  int
	cause error
}

func New(code int) *Error {
	return &Error{Code: code}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error: code = %d cause = %v", e.Code, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}
