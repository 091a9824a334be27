package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers are expected to branch on.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("store unavailable")
)

// AppError wraps a sentinel with a human-readable message.
type AppError struct {
	Err     error
	Message string
	Field   string // optional: the offending field
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Unauthorized reports that the caller's role does not permit the operation.
func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}

// Validation reports a malformed or missing required field.
func Validation(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

// NotFound reports an absent referenced entity.
func NotFound(resource string, id int64) *AppError {
	return &AppError{Err: ErrNotFound, Message: fmt.Sprintf("%s %d not found", resource, id)}
}

// Unavailable reports a storage failure that survived retries.
func Unavailable(op string, err error) *AppError {
	return &AppError{Err: ErrUnavailable, Message: fmt.Sprintf("%s: storage unavailable: %v", op, err)}
}
