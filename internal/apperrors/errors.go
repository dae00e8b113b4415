package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a referenced resource (reservation, account,
// debit card) could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that caller input failed validation checks. It never
// follows a state mutation.
var ErrValidation = errors.New("validation error")

// ErrConflict indicates a request UUID already bound to a different
// transaction, or an attempt to finalize a reservation that already has a
// commit or cancel row.
var ErrConflict = errors.New("request conflicts with existing state")

// ErrUnprocessable indicates a well-formed request whose business precondition
// failed, e.g. an inactive account.
var ErrUnprocessable = errors.New("business precondition failed")

// ErrInternal indicates a downstream dependency failure.
var ErrInternal = errors.New("internal error")

// AppError wraps a lower-level failure with an HTTP-ish code and a message.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError wrapping err.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
