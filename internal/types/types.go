// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// handlers, storage, and utils can all import types without depending
// on each other.
//
// A student travels through the service in three shapes:
//
//	StudentCreate — request body of POST, every field required
//	StudentUpdate — request body of PUT, every field optional
//	Student       — what we send back, plus id and registered_at
package types

import "time"

// Student represents a stored student record. It is the response shape of
// every endpoint that returns a student.
//
// ID and RegisteredAt are assigned by the database on insert and never
// change afterwards.
type Student struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Major        string    `json:"major"`
	Average      float64   `json:"average"`
	RegisteredAt time.Time `json:"registered_at"`
}

// StudentCreate is the payload accepted by POST /students/.
//
// Fields are pointers so that "missing" can be told apart from a legal zero
// value: an average of 0 or an empty major are valid, a missing one is not.
// The go-playground/validator "required" tag on a pointer only checks that
// the pointer is non-nil; the remaining tags then run against the value.
//
// min/max on strings count characters (runes), not bytes.
type StudentCreate struct {
	Name    *string  `json:"name"    validate:"required,min=1,max=100"`
	Age     *int     `json:"age"     validate:"required,min=15,max=100"`
	Major   *string  `json:"major"   validate:"required,max=100"`
	Average *float64 `json:"average" validate:"required,min=0,max=100"`
}

// StudentUpdate is the payload accepted by PUT /students/{id}.
//
// A nil field was not supplied and is left untouched by the update.
// "omitnil" (rather than "omitempty") makes the validator skip only nil
// pointers, so an explicit "" for name is still rejected by min=1.
//
// JSON null decodes to nil as well: there is no way to clear a field.
type StudentUpdate struct {
	Name    *string  `json:"name"    validate:"omitnil,min=1,max=100"`
	Age     *int     `json:"age"     validate:"omitnil,min=15,max=100"`
	Major   *string  `json:"major"   validate:"omitnil,max=100"`
	Average *float64 `json:"average" validate:"omitnil,min=0,max=100"`
}

// IsEmpty reports whether no field was supplied.
func (u StudentUpdate) IsEmpty() bool {
	return u.Name == nil && u.Age == nil && u.Major == nil && u.Average == nil
}
