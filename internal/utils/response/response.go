// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every handler in this application sends JSON back to the client.
// Rather than repeating the same three lines (set header, set status,
// encode JSON) in every handler, we centralise them here.
//
// Error responses always have the shape of errs.HTTPError:
//
//	{ "code": "NOT_FOUND", "message": "student with id 7 not found", "status": 404 }
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/student-records/internal/errs"
)

// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes err as an errs.HTTPError. Anything that is not already
// one becomes a generic 500 so internal details never reach the client.
// It returns the HTTPError that was written, for logging.
func WriteError(w http.ResponseWriter, err error) *errs.HTTPError {
	httpErr, ok := errs.As(err)
	if !ok {
		httpErr = errs.NewInternalServerError().WithCause(err)
	}
	_ = WriteJSON(w, httpErr.Status, httpErr)
	return httpErr
}

// NoContent writes a bodiless 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ValidationError converts the validator's per-field failures into a single
// 422 with one errs.FieldError per failing field.
//
// Example output:
//
//	{ "code": "VALIDATION_ERROR", "message": "Validation failed", "status": 422,
//	  "errors": [ { "field": "age", "error": "must be at least 15" } ] }
func ValidationError(errors validator.ValidationErrors) *errs.HTTPError {
	fields := make([]errs.FieldError, 0, len(errors))

	for _, e := range errors {
		fields = append(fields, errs.FieldError{
			Field: e.Field(),
			Error: describe(e),
		})
	}

	return errs.NewValidationError("Validation failed", fields)
}

// describe turns one validator failure into plain English.
func describe(e validator.FieldError) string {
	isString := e.Kind() == reflect.String

	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return fmt.Sprintf("must not exceed %s", e.Param())
	default:
		if e.Param() != "" {
			return fmt.Sprintf("failed %s=%s", e.Tag(), e.Param())
		}
		return fmt.Sprintf("failed %s", e.Tag())
	}
}
