// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver. It is the default backend for local development and for the
// handler tests.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// studentColumns is the column list every query returns, in the order
// scanStudent expects. Never SELECT * — a new column would break Scan.
const studentColumns = "id, name, age, major, average, registered_at"

// schema is idempotent and runs on every startup. The CHECK constraints
// repeat the validator rules so the table stays consistent even if
// something writes to it behind the API's back.
const schema = `
	CREATE TABLE IF NOT EXISTS students (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT     NOT NULL CHECK (length(name) BETWEEN 1 AND 100),
		age           INTEGER  NOT NULL CHECK (age BETWEEN 15 AND 100),
		major         TEXT     NOT NULL CHECK (length(major) <= 100),
		average       REAL     NOT NULL CHECK (average BETWEEN 0 AND 100),
		registered_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	)
`

// SQLite is the concrete implementation of storage.Storage.
// Db is the database/sql handle; each operation checks out its own
// *sql.Conn from it and gives it back when done.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at cfg.Storage.SQLitePath, creates the
// students table if it does not already exist, and returns a ready-to-use
// *SQLite.
func New(cfg *config.Config) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.Storage.SQLitePath))
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// dsn adds the driver options every connection needs to the configured
// path, keeping any options already present in it.
//
// _txlock=immediate makes BEGIN take the write lock up front. A deferred
// transaction that reads and then writes cannot upgrade its lock while
// another one holds it, and fails with "database is locked" instead of
// waiting. _busy_timeout is how long BEGIN waits for that lock.
func dsn(path string) string {
	var opts []string
	if !strings.Contains(path, "_txlock=") {
		opts = append(opts, "_txlock=immediate")
	}
	if !strings.Contains(path, "_busy_timeout=") {
		opts = append(opts, "_busy_timeout=5000")
	}
	if len(opts) == 0 {
		return path
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(opts, "&")
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// withConnection runs body inside a transaction on a dedicated connection.
//
//   - body returns nil     → COMMIT
//   - body returns error   → ROLLBACK, the error is returned unchanged
//   - body panics          → ROLLBACK, the panic continues
//
// The connection goes back to database/sql on every path.
func (s *SQLite) withConnection(ctx context.Context, body func(tx *sql.Tx) error) error {
	conn, err := s.Db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := body(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanStudent reads one row laid out as studentColumns.
func scanStudent(row rowScanner) (types.Student, error) {
	var (
		student      types.Student
		registeredAt timestamp
	)
	err := row.Scan(
		&student.ID,
		&student.Name,
		&student.Age,
		&student.Major,
		&student.Average,
		&registeredAt,
	)
	if err != nil {
		return types.Student{}, err
	}
	student.RegisteredAt = registeredAt.Time
	return student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// CreateStudent inserts a new row and returns it with RETURNING, so the
// response holds exactly what the database stored (id and registered_at
// included) without a second query.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) CreateStudent(ctx context.Context, in types.StudentCreate) (types.Student, error) {
	var created types.Student

	err := s.withConnection(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"INSERT INTO students (name, age, major, average) VALUES (?, ?, ?, ?) RETURNING "+studentColumns,
			*in.Name, *in.Age, *in.Major, *in.Average,
		)

		var err error
		created, err = scanStudent(row)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNoRowReturned
		}
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: %w", err)
	}

	return created, nil
}

// GetStudents returns one page of students ordered by id.
func (s *SQLite) GetStudents(ctx context.Context, skip, limit int) ([]types.Student, error) {
	// Pre-allocate an empty (non-nil) slice so the JSON is [] rather than null.
	students := make([]types.Student, 0)

	err := s.withConnection(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT "+studentColumns+" FROM students ORDER BY id LIMIT ? OFFSET ?",
			limit, skip,
		)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			student, err := scanStudent(rows)
			if err != nil {
				return fmt.Errorf("scan row: %w", err)
			}
			students = append(students, student)
		}

		// rows.Err() captures any error that occurred during iteration.
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("GetStudents: %w", err)
	}

	return students, nil
}

// GetStudentByID fetches exactly one student row matched by primary key.
func (s *SQLite) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	var student types.Student

	err := s.withConnection(ctx, func(tx *sql.Tx) error {
		var err error
		student, err = getByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: %w", err)
	}

	return student, nil
}

// getByID is the lookup shared by every operation that must first confirm
// the record exists. It runs on the caller's transaction.
func getByID(ctx context.Context, tx *sql.Tx, id int64) (types.Student, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students WHERE id = ?", id)

	student, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Student{}, fmt.Errorf("id %d: %w", id, storage.ErrStudentNotFound)
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("scan: %w", err)
	}
	return student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateStudentByID changes only the columns present in the update.
//
// The SET clause is assembled from storage.Assignments: one "col = ?" per
// supplied field, values passed separately as bind parameters. Nothing the
// client sends ever becomes part of the SQL text.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) UpdateStudentByID(ctx context.Context, id int64, in types.StudentUpdate) (types.Student, error) {
	var updated types.Student

	err := s.withConnection(ctx, func(tx *sql.Tx) error {
		existing, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}

		assignments := storage.Assignments(in)
		if len(assignments) == 0 {
			updated = existing
			return nil
		}

		sets := make([]string, 0, len(assignments))
		args := make([]any, 0, len(assignments)+1)
		for _, a := range assignments {
			sets = append(sets, a.Column+" = ?")
			args = append(args, a.Value)
		}
		args = append(args, id)

		query := "UPDATE students SET " + strings.Join(sets, ", ") +
			" WHERE id = ? RETURNING " + studentColumns

		updated, err = scanStudent(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted by someone else between the check and the write.
			return fmt.Errorf("id %d: %w", id, storage.ErrStudentNotFound)
		}
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: %w", err)
	}

	return updated, nil
}

// DeleteStudentByID removes a student row by primary key.
func (s *SQLite) DeleteStudentByID(ctx context.Context, id int64) error {
	err := s.withConnection(ctx, func(tx *sql.Tx) error {
		if _, err := getByID(ctx, tx, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: %w", err)
	}

	return nil
}
