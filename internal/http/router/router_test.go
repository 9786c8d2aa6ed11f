package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/storage/sqlite"
)

func newHandler(t *testing.T, logs *bytes.Buffer, origins ...string) http.Handler {
	t.Helper()

	s, err := sqlite.New(&config.Config{
		Storage: config.Storage{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "students.db"),
		},
	})
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return New(s, Options{Logger: zerolog.New(logs), AllowedOrigins: origins})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	t.Parallel()
	h := newHandler(t, new(bytes.Buffer))

	body := `{"name":"Ana","age":20,"major":"CS","average":88.5}`
	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodPost, "/students/", body, http.StatusCreated},
		{http.MethodPost, "/students", body, http.StatusCreated},
		{http.MethodGet, "/students/", "", http.StatusOK},
		{http.MethodGet, "/students", "", http.StatusOK},
		{http.MethodGet, "/students/1", "", http.StatusOK},
		{http.MethodPut, "/students/2", `{"major":"Math"}`, http.StatusOK},
		{http.MethodDelete, "/students/2", "", http.StatusNoContent},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
		{http.MethodPatch, "/students/1", `{}`, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		rec := serve(h, req)
		if rec.Code != tt.want {
			t.Fatalf("%s %s: status=%d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
		}
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("any origin is echoed with credentials", func(t *testing.T) {
		h := newHandler(t, new(bytes.Buffer), "*")

		req := httptest.NewRequest(http.MethodGet, "/students/", nil)
		req.Header.Set("Origin", "http://10.0.2.2:3000")
		rec := serve(h, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://10.0.2.2:3000" {
			t.Fatalf("Allow-Origin=%q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Fatalf("Allow-Credentials=%q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		h := newHandler(t, new(bytes.Buffer))

		req := httptest.NewRequest(http.MethodOptions, "/students/1", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		req.Header.Set("Access-Control-Request-Headers", "X-Custom-Header")
		rec := serve(h, req)

		if rec.Code >= 300 {
			t.Fatalf("status=%d, want 2xx", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodDelete) {
			t.Fatalf("Allow-Methods=%q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Fatalf("Allow-Origin=%q", got)
		}
	})

	t.Run("restricted origins", func(t *testing.T) {
		h := newHandler(t, new(bytes.Buffer), "https://school.example")

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := serve(h, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("Allow-Origin=%q, want none", got)
		}
	})
}

func TestAccessLogAndRequestID(t *testing.T) {
	t.Parallel()

	logs := new(bytes.Buffer)
	h := newHandler(t, logs)

	req := httptest.NewRequest(http.MethodGet, "/students/42", nil)
	rec := serve(h, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
	id := rec.Header().Get("X-Request-Id")
	if id == "" {
		t.Fatal("X-Request-Id not set")
	}
	out := logs.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, id) {
		t.Fatalf("access log missing status or request id: %s", out)
	}
}
