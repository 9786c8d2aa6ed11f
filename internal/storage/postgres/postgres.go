// Package postgres is the PostgreSQL implementation of storage.Storage,
// built on jackc/pgx.
//
// There is no pool: each operation dials its own
// connection with pgx.ConnectConfig, runs one transaction on it and closes
// it. The parsed connection config (DSN, tracer) is built once in New.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
)

const studentColumns = "id, name, age, major, average, registered_at"

const schema = `
	CREATE TABLE IF NOT EXISTS students (
		id            BIGSERIAL        PRIMARY KEY,
		name          VARCHAR(100)     NOT NULL CHECK (char_length(name) >= 1),
		age           INTEGER          NOT NULL CHECK (age BETWEEN 15 AND 100),
		major         VARCHAR(100)     NOT NULL,
		average       DOUBLE PRECISION NOT NULL CHECK (average BETWEEN 0 AND 100),
		registered_at TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	)
`

// PingTimeout bounds the startup connectivity check.
const PingTimeout = 10 * time.Second

// Postgres implements storage.Storage.
type Postgres struct {
	connConfig *pgx.ConnConfig
	log        zerolog.Logger
}

var _ storage.Storage = (*Postgres)(nil)

// New parses cfg.Storage.PostgresDSN, verifies the server is reachable and
// creates the students table if needed.
//
// In the dev environment every statement is logged through zerolog.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Postgres, error) {
	connConfig, err := pgx.ParseConfig(cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse dsn: %w", err)
	}

	if cfg.Env == "dev" {
		connConfig.Tracer = &tracelog.TraceLog{
			Logger:   zerologadapter.NewLogger(logger.With().Str("component", "pgx").Logger()),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	p := &Postgres{connConfig: connConfig, log: logger}

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	err = p.withConnection(pingCtx, func(tx pgx.Tx) error {
		_, err := tx.Exec(pingCtx, schema)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.New: create table: %w", err)
	}

	logger.Info().Msg("connected to the database")
	return p, nil
}

// Close is a no-op: no connection outlives the operation that opened it.
func (p *Postgres) Close() error {
	return nil
}

// withConnection dials a fresh connection, runs body in a transaction
// (pgx.BeginFunc commits on nil, rolls back on error or panic) and closes
// the connection on every path.
func (p *Postgres) withConnection(ctx context.Context, body func(tx pgx.Tx) error) error {
	conn, err := pgx.ConnectConfig(ctx, p.connConfig)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			p.log.Warn().Err(err).Msg("closing postgres connection")
		}
	}()

	return pgx.BeginFunc(ctx, conn, body)
}

func scanStudent(row pgx.Row) (types.Student, error) {
	var s types.Student
	err := row.Scan(&s.ID, &s.Name, &s.Age, &s.Major, &s.Average, &s.RegisteredAt)
	return s, err
}

// CreateStudent inserts a row and returns it as stored.
func (p *Postgres) CreateStudent(ctx context.Context, in types.StudentCreate) (types.Student, error) {
	var created types.Student

	err := p.withConnection(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = scanStudent(tx.QueryRow(ctx,
			"INSERT INTO students (name, age, major, average) VALUES ($1, $2, $3, $4) RETURNING "+studentColumns,
			*in.Name, *in.Age, *in.Major, *in.Average,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNoRowReturned
		}
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: %w", mapError(err))
	}

	return created, nil
}

// GetStudents returns one page of students ordered by id.
func (p *Postgres) GetStudents(ctx context.Context, skip, limit int) ([]types.Student, error) {
	students := make([]types.Student, 0)

	err := p.withConnection(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+studentColumns+" FROM students ORDER BY id LIMIT $1 OFFSET $2",
			limit, skip,
		)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}

		page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Student, error) {
			return scanStudent(row)
		})
		if err != nil {
			return fmt.Errorf("collect rows: %w", err)
		}
		students = append(students, page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("GetStudents: %w", mapError(err))
	}

	return students, nil
}

// GetStudentByID fetches one student or storage.ErrStudentNotFound.
func (p *Postgres) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	var student types.Student

	err := p.withConnection(ctx, func(tx pgx.Tx) error {
		var err error
		student, err = getByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: %w", mapError(err))
	}

	return student, nil
}

func getByID(ctx context.Context, tx pgx.Tx, id int64) (types.Student, error) {
	student, err := scanStudent(tx.QueryRow(ctx, "SELECT "+studentColumns+" FROM students WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Student{}, fmt.Errorf("id %d: %w", id, storage.ErrStudentNotFound)
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("scan: %w", err)
	}
	return student, nil
}

// UpdateStudentByID writes only the supplied columns, numbering the
// placeholders $1..$n in storage.Assignments order and binding id last.
func (p *Postgres) UpdateStudentByID(ctx context.Context, id int64, in types.StudentUpdate) (types.Student, error) {
	var updated types.Student

	err := p.withConnection(ctx, func(tx pgx.Tx) error {
		existing, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}

		assignments := storage.Assignments(in)
		if len(assignments) == 0 {
			updated = existing
			return nil
		}

		query, args := buildUpdate(id, assignments)
		updated, err = scanStudent(tx.QueryRow(ctx, query, args...))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("id %d: %w", id, storage.ErrStudentNotFound)
		}
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: %w", mapError(err))
	}

	return updated, nil
}

// buildUpdate renders the UPDATE statement for assignments, which must not
// be empty.
func buildUpdate(id int64, assignments []storage.Assignment) (string, []any) {
	sets := make([]string, 0, len(assignments))
	args := make([]any, 0, len(assignments)+1)
	for i, a := range assignments {
		sets = append(sets, fmt.Sprintf("%s = $%d", a.Column, i+1))
		args = append(args, a.Value)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE students SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), studentColumns)
	return query, args
}

// DeleteStudentByID removes a row permanently.
func (p *Postgres) DeleteStudentByID(ctx context.Context, id int64) error {
	err := p.withConnection(ctx, func(tx pgx.Tx) error {
		if _, err := getByID(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: %w", mapError(err))
	}

	return nil
}
