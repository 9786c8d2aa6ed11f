// Package router wires the student handlers and the middleware stack into a
// single http.Handler.
//
// Route table:
//
//	GET    /                 → static API descriptor
//	POST   /students/        → create a new student
//	GET    /students/        → list students (?skip=&limit=)
//	GET    /students/{id}    → get one student by ID
//	PUT    /students/{id}    → update some fields of a student
//	DELETE /students/{id}    → delete a student
//
// The collection also answers without the trailing slash.
package router

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/aanand-mishra/student-records/internal/http/handlers/root"
	"github.com/aanand-mishra/student-records/internal/http/handlers/student"
	"github.com/aanand-mishra/student-records/internal/storage"
)

// Options configures New.
type Options struct {
	Logger zerolog.Logger

	// AllowedOrigins is the CORS origin list; "*" allows any origin.
	AllowedOrigins []string
}

// New returns the API handler.
//
// Middleware runs outermost first: request logger and id, access log,
// real client IP, panic recovery, CORS, then the mux.
func New(store storage.Storage, opts Options) http.Handler {
	mux := http.NewServeMux()

	// {$} anchors the pattern so "GET /" does not match every path.
	mux.HandleFunc("GET /{$}", root.Index())

	for _, collection := range []string{"/students", "/students/{$}"} {
		mux.HandleFunc("POST "+collection, student.New(store))
		mux.HandleFunc("GET "+collection, student.GetList(store))
	}
	mux.HandleFunc("GET /students/{id}", student.GetByID(store))
	mux.HandleFunc("PUT /students/{id}", student.Update(store))
	mux.HandleFunc("DELETE /students/{id}", student.Delete(store))

	var h http.Handler = mux
	h = corsHandler(opts.AllowedOrigins)(h)
	h = middleware.Recoverer(h)
	h = middleware.RealIP(h)
	h = hlog.AccessHandler(accessLog)(h)
	h = hlog.RequestIDHandler("request_id", "X-Request-Id")(h)
	h = hlog.NewHandler(opts.Logger)(h)
	return h
}

// corsHandler is a permissive development policy: any method, any header,
// credentials allowed. "*" is served through AllowOriginFunc so the
// request's Origin is echoed back; browsers reject a literal "*" when
// credentials are allowed.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	return cors.Handler(opts)
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
