// Package apperr defines the typed errors that guards, validators and
// services return. A single terminal middleware turns them into responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError describes why a single request field was rejected
type FieldError struct {
	Message  string `json:"msg"`
	Value    any    `json:"value,omitempty"`
	Location string `json:"location,omitempty"`
}

type Error struct {
	Status  int                   `json:"-"`
	Message string                `json:"message"`
	Fields  map[string]FieldError `json:"errors,omitempty"`

	// Err is the underlying cause. It's logged but never serialized.
	Err error `json:"-"`
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

// Aborts reports whether the error must bypass validation aggregation.
// Anything that isn't a plain 422 short-circuits the request.
func (e *Error) Aborts() bool {
	return e.Status != http.StatusUnprocessableEntity
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Validation(fields map[string]FieldError) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Message: MsgValidationError,
		Fields:  fields,
	}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

func Unavailable(err error) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Message: MsgUnavailable, Err: err}
}

func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: MsgInternal, Err: err}
}

// Wrap attaches a cause to a typed error without changing what the client sees
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// As extracts the typed error from err, if there is one
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}
