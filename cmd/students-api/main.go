// main is the entry point of the Students API application.
//
// STARTUP SEQUENCE:
//  1. Load .env (if present) and the configuration
//  2. Initialise the logger
//  3. Open the configured storage backend (SQLite or PostgreSQL)
//  4. Build the router: routes + CORS + request logging
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives or the server fails
//  7. Gracefully shut down: finish in-flight requests, close storage, and
//     exit with status 1 if the server failed
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-api --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/students-api
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/http/handlers/root"
	"github.com/aanand-mishra/student-records/internal/http/router"
	"github.com/aanand-mishra/student-records/internal/logger"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/storage/postgres"
	"github.com/aanand-mishra/student-records/internal/storage/sqlite"
)

func main() {
	// run returns only after its deferred cleanup (closing storage) is done,
	// so exiting here does not skip it.
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// The godotenv/autoload import above has already copied .env into the
	// process environment, so env overrides from it apply here.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	log := logger.New(cfg.Env)

	log.Info().
		Str("env", cfg.Env).
		Str("version", root.Version).
		Msg("starting students-api")

	// ── 3. Initialise Storage (Database) ──────────────────────────────────
	// The rest of the program only sees the storage.Storage interface.
	store, err := openStorage(context.Background(), cfg, log)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialise storage")
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	log.Info().Str("driver", cfg.Storage.Driver).Msg("storage initialised")

	// ── 4. Create the HTTP Server ─────────────────────────────────────────
	server := &http.Server{
		Addr: cfg.HTTPServer.Addr,
		Handler: router.New(store, router.Options{
			Logger:         log,
			AllowedOrigins: cfg.HTTPServer.CORSAllowedOrigins,
		}),

		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// ── 5. Serve until Ctrl+C / kill ──────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	return serve(server, done, cfg.HTTPServer.ShutdownTimeout, log)
}

// serve runs server until a signal arrives on done or the listener fails,
// then shuts it down within shutdownTimeout. The returned error is non-nil
// when the server failed or could not stop cleanly; a signal-driven stop
// returns nil.
func serve(server *http.Server, done <-chan os.Signal, shutdownTimeout time.Duration, log zerolog.Logger) error {
	// ListenAndServe blocks, so it runs off the calling goroutine; serveErr
	// lets a failed listen end the wait below.
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", server.Addr).Msg("server started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var failure error
	select {
	case sig := <-done:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received, stopping server...")
	case err, ok := <-serveErr:
		if !ok {
			err = errors.New("server stopped unexpectedly")
		}
		log.Error().Err(err).Msg("server encountered an error")
		failure = err
	}

	// ── Graceful Shutdown ─────────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server gracefully")
		return errors.Join(failure, fmt.Errorf("shutdown: %w", err))
	}
	if failure != nil {
		return failure
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}

// openStorage builds the backend named by cfg.Storage.Driver.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
