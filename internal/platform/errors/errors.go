// Package errors provides structured errors with HTTP status mapping for the status API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an error, rendered in responses and used as a log level hint.
type ErrorType string

const (
	TypeValidation  ErrorType = "validation"  // 400
	TypeNotFound    ErrorType = "not_found"   // 404
	TypeUnavailable ErrorType = "unavailable" // 503
	TypeInternal    ErrorType = "internal"    // 500
	TypeExternal    ErrorType = "external"    // 502
)

// Error is a structured error with type, message and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithField adds a context field (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorBody is the "error" object of a response.
type ErrorBody struct {
	Type    ErrorType      `json:"type"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func (e *Error) ToResponse() ErrorResponse {
	var ctx map[string]any
	if len(e.Context) > 0 {
		ctx = e.Context
	}
	return ErrorResponse{Error: ErrorBody{Type: e.Type, Message: e.Message, Context: ctx}}
}

// AsStructuredError returns err as an *Error, wrapping anything unstructured as internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
