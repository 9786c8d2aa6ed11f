package main

import (
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestServe_ListenFailureIsAnError(t *testing.T) {
	t.Parallel()

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	server := &http.Server{Addr: taken.Addr().String(), Handler: http.NotFoundHandler()}
	done := make(chan os.Signal, 1)

	if err := serve(server, done, time.Second, zerolog.New(io.Discard)); err == nil {
		t.Fatal("serve on a taken port returned nil, want an error")
	}
}

func TestServe_SignalStopsCleanly(t *testing.T) {
	t.Parallel()

	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan os.Signal, 1)
	done <- syscall.SIGTERM

	if err := serve(server, done, time.Second, zerolog.New(io.Discard)); err != nil {
		t.Fatalf("serve after SIGTERM: %v", err)
	}
}
