// Package apperror defines the failure taxonomy shared by every layer.
//
// Each failure wraps one sentinel so callers branch with errors.Is:
//
//	ErrValidation → 400   malformed, missing or mistyped input
//	ErrNotFound   → 404   no live snippet under the name
//	ErrConflict   → 409   a live snippet already holds the name
//	ErrForbidden  → 403   password does not match a secured snippet
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// FieldError names one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error        // actual error
	Message string       // Human-readable error message
	Field   string       // Optional: field causing the error
	Fields  []FieldError // Optional: every invalid field, for multi-field validation
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %q does not exist", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	e := &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
	if field != "" {
		e.Fields = []FieldError{{Field: field, Message: message}}
	}
	return e
}

// InvalidFields collapses several field problems into one validation error.
// The message joins the individual messages; Field is the first offender.
func InvalidFields(fields []FieldError) *AppError {
	if len(fields) == 0 {
		return ValidationFailed("", "invalid request")
	}
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return &AppError{
		Err:     ErrValidation,
		Message: strings.Join(msgs, "; "),
		Field:   fields[0].Field,
		Fields:  fields,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %q already exists", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
