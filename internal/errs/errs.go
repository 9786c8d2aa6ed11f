// Package errs defines the error shape the API sends to clients.
//
// Three kinds of failure reach a client:
//
//   - validation (422): a field broke a length or range rule, or the body
//     could not be decoded at all
//   - not found (404): the requested id has no record
//   - internal (500): the store misbehaved
//
// Handlers return or build *HTTPError values; response.WriteError turns any
// error into one of them.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FieldError is a single field-level problem, e.g.
//
//	{ "field": "age", "error": "must be at least 15" }
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// HTTPError is the JSON body of every error response.
type HTTPError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Status  int          `json:"status"`
	Errors  []FieldError `json:"errors,omitempty"`

	// cause is the underlying error, kept for logs and errors.Is/As.
	// It is never serialised.
	cause error
}

// Error makes *HTTPError satisfy the built-in error interface.
func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *HTTPError) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of e that wraps cause.
func (e *HTTPError) WithCause(cause error) *HTTPError {
	out := *e
	out.cause = cause
	return &out
}

// WithMessage returns a copy of e with Message replaced.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	out := *e
	out.Message = message
	return &out
}

// codeFor turns http.StatusText into a machine-friendly code:
// "Not Found" -> "NOT_FOUND".
func codeFor(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// NewNotFoundError creates a 404 with the given message.
func NewNotFoundError(message string) *HTTPError {
	return &HTTPError{
		Code:    codeFor(http.StatusNotFound),
		Message: message,
		Status:  http.StatusNotFound,
	}
}

// NewValidationError creates a 422. fields may be nil when the problem is
// not tied to a single field (a malformed body, for instance).
func NewValidationError(message string, fields []FieldError) *HTTPError {
	return &HTTPError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Errors:  fields,
	}
}

// NewInternalServerError creates a 500. The message is the generic status
// text; the real cause goes to the logs, not to the client.
func NewInternalServerError() *HTTPError {
	return &HTTPError{
		Code:    codeFor(http.StatusInternalServerError),
		Message: http.StatusText(http.StatusInternalServerError),
		Status:  http.StatusInternalServerError,
	}
}

// As extracts an *HTTPError from anywhere in err's chain.
func As(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
