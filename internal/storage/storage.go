// Package storage defines the Storage interface — the contract any database
// backend must satisfy to serve the student endpoints.
//
// Handlers depend only on this interface, so the same HTTP layer runs on
// SQLite (internal/storage/sqlite) or PostgreSQL (internal/storage/postgres),
// and tests can swap in whichever is convenient.
//
// Every method is one logical operation: the backend acquires a dedicated
// connection, opens a transaction, commits if everything went well, rolls
// back otherwise, and releases the connection before returning.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/student-records/internal/types"
)

var (
	// ErrStudentNotFound is returned (wrapped) when the requested id has no
	// row. Check it with errors.Is.
	ErrStudentNotFound = errors.New("student not found")

	// ErrNoRowReturned is returned when an INSERT ... RETURNING produced no
	// row, which should never happen on a healthy store.
	ErrNoRowReturned = errors.New("insert returned no row")
)

// Storage is the database contract.
type Storage interface {
	// CreateStudent inserts a row and returns it exactly as persisted,
	// including the store-assigned id and registered_at.
	CreateStudent(ctx context.Context, in types.StudentCreate) (types.Student, error)

	// GetStudents returns at most limit students ordered by id, skipping
	// the first skip. The slice is empty (not nil) when nothing matches.
	GetStudents(ctx context.Context, skip, limit int) ([]types.Student, error)

	// GetStudentByID fetches one student or ErrStudentNotFound.
	GetStudentByID(ctx context.Context, id int64) (types.Student, error)

	// UpdateStudentByID writes only the fields present in in and returns the
	// resulting row. An empty update writes nothing and returns the current
	// row. ErrStudentNotFound if the id does not exist.
	UpdateStudentByID(ctx context.Context, id int64, in types.StudentUpdate) (types.Student, error)

	// DeleteStudentByID removes the row permanently, or returns
	// ErrStudentNotFound.
	DeleteStudentByID(ctx context.Context, id int64) error

	// Close releases whatever the backend holds open.
	Close() error
}

// Assignment is one "column = value" pair of an UPDATE statement.
type Assignment struct {
	Column string
	Value  any
}

// Assignments lists the columns an update touches, in a fixed order
// (name, age, major, average), with the values to bind. Absent fields are
// skipped. Backends render the placeholders in their own dialect; values are
// always bound, never spliced into the SQL text.
func Assignments(in types.StudentUpdate) []Assignment {
	var out []Assignment
	if in.Name != nil {
		out = append(out, Assignment{Column: "name", Value: *in.Name})
	}
	if in.Age != nil {
		out = append(out, Assignment{Column: "age", Value: *in.Age})
	}
	if in.Major != nil {
		out = append(out, Assignment{Column: "major", Value: *in.Major})
	}
	if in.Average != nil {
		out = append(out, Assignment{Column: "average", Value: *in.Average})
	}
	return out
}
