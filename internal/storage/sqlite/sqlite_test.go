package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
)

func ptr[T any](v T) *T { return &v }

func newTestStorage(t *testing.T) *SQLite {
	t.Helper()

	cfg := &config.Config{
		Storage: config.Storage{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "students.db"),
		},
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createStudent(t *testing.T, s *SQLite, name string, age int, major string, avg float64) types.Student {
	t.Helper()

	st, err := s.CreateStudent(context.Background(), types.StudentCreate{
		Name: &name, Age: &age, Major: &major, Average: &avg,
	})
	if err != nil {
		t.Fatalf("CreateStudent(%s): %v", name, err)
	}
	return st
}

func countStudents(t *testing.T, s *SQLite) int {
	t.Helper()
	var n int
	if err := s.Db.QueryRow("SELECT COUNT(*) FROM students").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCreateStudent_ReturnsPersistedRow(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)

	before := time.Now().UTC().Add(-time.Minute)
	a := createStudent(t, s, "Ana", 20, "CS", 88.5)
	b := createStudent(t, s, "Luis", 22, "", 0)

	if a.Name != "Ana" || a.Age != 20 || a.Major != "CS" || a.Average != 88.5 {
		t.Fatalf("created=%+v, fields do not match input", a)
	}
	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Fatalf("ids not unique: a=%d b=%d", a.ID, b.ID)
	}
	if a.RegisteredAt.IsZero() || a.RegisteredAt.Before(before) {
		t.Fatalf("RegisteredAt=%v, want a fresh timestamp", a.RegisteredAt)
	}

	got, err := s.GetStudentByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetStudentByID: %v", err)
	}
	if !got.RegisteredAt.Equal(a.RegisteredAt) || got.Name != a.Name || got.ID != a.ID {
		t.Fatalf("GetStudentByID=%+v, want %+v", got, a)
	}
}

func TestGetStudents_OrderAndPaging(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	empty, err := s.GetStudents(ctx, 0, 100)
	if err != nil {
		t.Fatalf("GetStudents(empty): %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("GetStudents(empty)=%#v, want non-nil empty slice", empty)
	}

	var ids []int64
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, createStudent(t, s, name, 18, "Art", 50).ID)
	}

	all, err := s.GetStudents(ctx, 0, 100)
	if err != nil {
		t.Fatalf("GetStudents: %v", err)
	}
	if len(all) != len(ids) {
		t.Fatalf("len=%d, want %d", len(all), len(ids))
	}
	for i := range all {
		if all[i].ID != ids[i] {
			t.Fatalf("all[%d].ID=%d, want %d", i, all[i].ID, ids[i])
		}
	}

	page, err := s.GetStudents(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetStudents(page): %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[1] || page[1].ID != ids[2] {
		t.Fatalf("page=%+v, want ids %v", page, ids[1:3])
	}

	past, err := s.GetStudents(ctx, 10, 5)
	if err != nil {
		t.Fatalf("GetStudents(past end): %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("past end len=%d, want 0", len(past))
	}
}

func TestGetStudentByID_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)

	_, err := s.GetStudentByID(context.Background(), 404)
	if !errors.Is(err, storage.ErrStudentNotFound) {
		t.Fatalf("err=%v, want ErrStudentNotFound", err)
	}
}

func TestUpdateStudentByID(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	orig := createStudent(t, s, "Ana", 20, "CS", 88.5)

	t.Run("empty update is a no-op", func(t *testing.T) {
		got, err := s.UpdateStudentByID(ctx, orig.ID, types.StudentUpdate{})
		if err != nil {
			t.Fatalf("UpdateStudentByID: %v", err)
		}
		if got.ID != orig.ID || got.Name != orig.Name || got.Age != orig.Age ||
			got.Major != orig.Major || got.Average != orig.Average || !got.RegisteredAt.Equal(orig.RegisteredAt) {
			t.Fatalf("got=%+v, want unchanged %+v", got, orig)
		}
	})

	t.Run("only average changes", func(t *testing.T) {
		got, err := s.UpdateStudentByID(ctx, orig.ID, types.StudentUpdate{Average: ptr(95.0)})
		if err != nil {
			t.Fatalf("UpdateStudentByID: %v", err)
		}
		if got.Average != 95 {
			t.Fatalf("Average=%v, want 95", got.Average)
		}
		if got.Name != "Ana" || got.Age != 20 || got.Major != "CS" {
			t.Fatalf("untouched fields changed: %+v", got)
		}
		if !got.RegisteredAt.Equal(orig.RegisteredAt) {
			t.Fatalf("RegisteredAt changed: %v -> %v", orig.RegisteredAt, got.RegisteredAt)
		}
	})

	t.Run("several fields", func(t *testing.T) {
		got, err := s.UpdateStudentByID(ctx, orig.ID, types.StudentUpdate{Name: ptr("Ana María"), Major: ptr("")})
		if err != nil {
			t.Fatalf("UpdateStudentByID: %v", err)
		}
		if got.Name != "Ana María" || got.Major != "" || got.Age != 20 || got.Average != 95 {
			t.Fatalf("got=%+v", got)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := s.UpdateStudentByID(ctx, orig.ID+100, types.StudentUpdate{Age: ptr(30)})
		if !errors.Is(err, storage.ErrStudentNotFound) {
			t.Fatalf("err=%v, want ErrStudentNotFound", err)
		}
	})
}

func TestUpdateStudentByID_ConcurrentWritesAllSucceed(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	st := createStudent(t, s, "Ana", 20, "CS", 50)

	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateStudentByID(ctx, st.ID, types.StudentUpdate{Average: ptr(float64(i))})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent UpdateStudentByID: %v", err)
		}
	}

	got, err := s.GetStudentByID(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetStudentByID: %v", err)
	}
	if got.Average < 0 || got.Average >= writers || got.Average != float64(int(got.Average)) {
		t.Fatalf("Average=%v, want one of the written values", got.Average)
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path, want string
	}{
		{"students.db", "students.db?_txlock=immediate&_busy_timeout=5000"},
		{"file:students.db?cache=shared", "file:students.db?cache=shared&_txlock=immediate&_busy_timeout=5000"},
		{"students.db?_txlock=exclusive", "students.db?_txlock=exclusive&_busy_timeout=5000"},
		{"students.db?_busy_timeout=100&_txlock=immediate", "students.db?_busy_timeout=100&_txlock=immediate"},
	}
	for _, tt := range tests {
		if got := dsn(tt.path); got != tt.want {
			t.Fatalf("dsn(%q)=%q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDeleteStudentByID(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	st := createStudent(t, s, "Ana", 20, "CS", 88.5)

	if err := s.DeleteStudentByID(ctx, st.ID); err != nil {
		t.Fatalf("DeleteStudentByID: %v", err)
	}
	if _, err := s.GetStudentByID(ctx, st.ID); !errors.Is(err, storage.ErrStudentNotFound) {
		t.Fatalf("get after delete err=%v, want ErrStudentNotFound", err)
	}
	if err := s.DeleteStudentByID(ctx, st.ID); !errors.Is(err, storage.ErrStudentNotFound) {
		t.Fatalf("second delete err=%v, want ErrStudentNotFound", err)
	}
}

func TestWithConnection_RollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.withConnection(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO students (name, age, major, average) VALUES ('Ghost', 20, 'X', 1)"); err != nil {
			t.Fatalf("insert: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
	if n := countStudents(t, s); n != 0 {
		t.Fatalf("rows after rollback=%d, want 0", n)
	}
}

func TestWithConnection_RollsBackOnPanic(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_ = s.withConnection(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO students (name, age, major, average) VALUES ('Ghost', 20, 'X', 1)"); err != nil {
				t.Fatalf("insert: %v", err)
			}
			panic("kaboom")
		})
	}()

	if n := countStudents(t, s); n != 0 {
		t.Fatalf("rows after panic=%d, want 0", n)
	}
}

func TestWithConnection_CommitsOnSuccess(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.withConnection(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO students (name, age, major, average) VALUES ('Kept', 20, 'X', 1)")
		return err
	})
	if err != nil {
		t.Fatalf("withConnection: %v", err)
	}
	if n := countStudents(t, s); n != 1 {
		t.Fatalf("rows after commit=%d, want 1", n)
	}
}

func TestSchema_RejectsOutOfRangeRows(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t)

	_, err := s.Db.Exec("INSERT INTO students (name, age, major, average) VALUES ('Kid', 9, 'X', 1)")
	if err == nil {
		t.Fatal("insert with age 9 succeeded, want CHECK failure")
	}
}

func TestTimestamp_Scan(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 3, 1, 10, 20, 30, 123000000, time.UTC)
	tests := []struct {
		name string
		src  any
	}{
		{"time", want},
		{"sqlite text", "2025-03-01 10:20:30.123"},
		{"bytes", []byte("2025-03-01 10:20:30.123")},
		{"rfc3339", "2025-03-01T10:20:30.123Z"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts timestamp
			if err := ts.Scan(tc.src); err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if !ts.Equal(want) {
				t.Fatalf("got %v, want %v", ts.Time, want)
			}
		})
	}

	var ts timestamp
	if err := ts.Scan(42); err == nil {
		t.Fatal("Scan(int) err=nil, want error")
	}
}
