// Package apperr provides structured errors with HTTP status code mapping for
// the serving layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type categorizes an error for response formatting and metrics.
type Type string

const (
	// TypeValidation indicates invalid input (HTTP 400)
	TypeValidation Type = "validation"
	// TypeNotFound indicates resource not found (HTTP 404)
	TypeNotFound Type = "not_found"
	// TypeInternal indicates server-side error (HTTP 500)
	TypeInternal Type = "internal"
	// TypeExternal indicates external collaborator error (HTTP 502)
	TypeExternal Type = "external"
)

// Error is a structured error with type, message, and cause.
type Error struct {
	Type    Type
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Validation creates a new validation error (HTTP 400).
func Validation(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

// NotFound creates a new not-found error (HTTP 404).
func NotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

// Internal creates a new internal error (HTTP 500).
func Internal(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// External creates a new external collaborator error (HTTP 502).
func External(message string, cause error) *Error {
	return &Error{Type: TypeExternal, Message: message, Cause: cause}
}

// Response is the JSON structure sent to clients.
type Response struct {
	Error string `json:"error"`
	Type  Type   `json:"type"`
}

// ToResponse converts an Error to a Response for JSON serialization.
func (e *Error) ToResponse() Response {
	return Response{Error: e.Message, Type: e.Type}
}

// From converts any error into a structured Error, wrapping unknown errors as
// internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	return Internal("internal server error", err)
}
