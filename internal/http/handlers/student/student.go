// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Each exported function receives its dependencies (storage) once, at route
// registration, and returns the http.HandlerFunc the router calls on every
// request:
//
//	mux.HandleFunc("POST /students/{$}", student.New(storage))
//
// Every handler follows the same steps: parse and validate the input (422
// on failure, before storage is touched), call exactly one storage method,
// translate the result or error into a JSON response.
package student

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"

	"github.com/aanand-mishra/student-records/internal/errs"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/utils/response"
)

// List defaults for GET /students/.
const (
	DefaultSkip  = 0
	DefaultLimit = 100
)

// validate is shared by all handlers: a *validator.Validate caches struct
// metadata and is safe for concurrent use. Field errors are reported with
// their JSON names ("average", not "Average").
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /students/
// Creates a new student from the JSON request body.
//
// Request body (JSON):
//
//	{ "name": "Ana", "age": 20, "major": "CS", "average": 88.5 }
//
// Success response (201 Created) — the stored row:
//
//	{ "id": 1, "name": "Ana", "age": 20, "major": "CS", "average": 88.5,
//	  "registered_at": "2025-03-01T10:20:30.123Z" }
//
// Error responses:
//
//	422 Unprocessable — empty body, malformed JSON, or failed validation
//	500 Internal      — database error, or the insert returned no row
//
// ─────────────────────────────────────────────────────────────────────────────
func New(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		log.Info().Msg("creating a student")

		var in types.StudentCreate
		if err := decodeAndValidate(r, &in); err != nil {
			fail(w, r, err)
			return
		}

		created, err := storage.CreateStudent(r.Context(), in)
		if err != nil {
			fail(w, r, storageError(err, 0))
			return
		}

		log.Info().Int64("id", created.ID).Msg("student created")
		_ = response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /students/?skip=0&limit=100
// Returns a JSON array of students ordered by id.
//
// Returns an empty array [] (not null) when there are no students. No total
// count is returned.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, err := queryInt(r, "skip", DefaultSkip, 0)
		if err != nil {
			fail(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", DefaultLimit, 1)
		if err != nil {
			fail(w, r, err)
			return
		}

		hlog.FromRequest(r).Info().Int("skip", skip).Int("limit", limit).Msg("getting students")

		students, err := storage.GetStudents(r.Context(), skip, limit)
		if err != nil {
			fail(w, r, storageError(err, 0))
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, students)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /students/{id}
//
// Error responses:
//
//	422 Unprocessable — id is not a valid integer
//	404 Not Found     — no student has that id
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		hlog.FromRequest(r).Info().Int64("id", id).Msg("getting a student")

		student, err := storage.GetStudentByID(r.Context(), id)
		if err != nil {
			fail(w, r, storageError(err, id))
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, student)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /students/{id}
// Changes only the fields present in the body; the rest keep their values.
//
// Request body (JSON) — any subset of the fields, including none:
//
//	{ "average": 91.5 }
//
// Success response (200 OK) — the student after the update. An empty body
// object ({}) changes nothing and returns the current record.
//
// Error responses:
//
//	422 Unprocessable — invalid id, malformed JSON, or failed validation
//	404 Not Found     — no student has that id
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		id, err := pathID(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		log.Info().Int64("id", id).Msg("updating a student")

		var in types.StudentUpdate
		if err := decodeAndValidate(r, &in); err != nil {
			fail(w, r, err)
			return
		}

		updated, err := storage.UpdateStudentByID(r.Context(), id, in)
		if err != nil {
			fail(w, r, storageError(err, id))
			return
		}

		log.Info().Int64("id", id).Bool("changed", !in.IsEmpty()).Msg("student updated")
		_ = response.WriteJSON(w, http.StatusOK, updated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /students/{id}
// Permanently removes a student record. 204 No Content on success; deleting
// the same id again is a 404, not a silent success.
// ─────────────────────────────────────────────────────────────────────────────
func Delete(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		id, err := pathID(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		log.Info().Int64("id", id).Msg("deleting a student")

		if err := storage.DeleteStudentByID(r.Context(), id); err != nil {
			fail(w, r, storageError(err, id))
			return
		}

		log.Info().Int64("id", id).Msg("student deleted")
		response.NoContent(w)
	}
}

// decodeAndValidate reads the JSON body into dst and runs the validator on
// it. Both kinds of failure are 422s, as is anything after the first value.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return errs.NewValidationError("request body is empty", nil)
	}
	if err != nil {
		return errs.NewValidationError("invalid JSON body: "+err.Error(), nil)
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errs.NewValidationError("invalid JSON body: unexpected data after the JSON object", nil)
	}

	err = validate.Struct(dst)
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return response.ValidationError(validationErrs)
	}
	return err
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errs.NewValidationError("invalid id: must be an integer",
			[]errs.FieldError{{Field: "id", Error: "must be an integer"}})
	}
	return id, nil
}

// queryInt reads an optional integer query parameter that must be >= floor.
func queryInt(r *http.Request, name string, def, floor int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewValidationError(fmt.Sprintf("invalid %s: must be an integer", name),
			[]errs.FieldError{{Field: name, Error: "must be an integer"}})
	}
	if v < floor {
		return 0, errs.NewValidationError(fmt.Sprintf("invalid %s: must be at least %d", name, floor),
			[]errs.FieldError{{Field: name, Error: fmt.Sprintf("must be at least %d", floor)}})
	}
	return v, nil
}

// storageError translates storage sentinels into client-facing errors.
// Errors the storage layer already mapped (constraint violations) and
// unknown errors pass through; WriteError turns the latter into 500s.
func storageError(err error, id int64) error {
	switch {
	case errors.Is(err, storage.ErrStudentNotFound):
		return errs.NewNotFoundError(fmt.Sprintf("student with id %d not found", id)).WithCause(err)
	case errors.Is(err, storage.ErrNoRowReturned):
		return errs.NewInternalServerError().WithMessage("error creating the student").WithCause(err)
	default:
		return err
	}
}

// fail writes err and logs it when it is the server's fault.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := response.WriteError(w, err)
	if httpErr.Status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(httpErr).Msg("request failed")
	}
}
