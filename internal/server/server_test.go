package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_ShutdownOrder(t *testing.T) {
	srv := New(http.NotFoundHandler(), 0, time.Second, time.Second, time.Second, testLogger())

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	srv.OnShutdown("notify-worker", record("notify-worker"))
	srv.OnShutdown("activity-worker", record("activity-worker"))
	srv.OnShutdown("reminders", record("reminders"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.RunContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	want := []string{"reminders", "activity-worker", "notify-worker"}
	if !slices.Equal(order, want) {
		t.Errorf("expected shutdown order %v, got %v", want, order)
	}
}

func TestServer_ShutdownErrorsJoined(t *testing.T) {
	srv := New(http.NotFoundHandler(), 0, time.Second, time.Second, time.Second, testLogger())

	errStuck := errors.New("stuck")
	srv.OnShutdown("ok", func(context.Context) error { return nil })
	srv.OnShutdown("stuck", func(context.Context) error { return errStuck })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.RunContext(ctx)
	if !errors.Is(err, errStuck) {
		t.Fatalf("expected joined error to wrap errStuck, got %v", err)
	}
}

func TestServer_Addr(t *testing.T) {
	srv := New(http.NotFoundHandler(), 8080, time.Second, time.Second, time.Second, nil)
	if srv.Addr() != ":8080" {
		t.Errorf("unexpected addr: %s", srv.Addr())
	}
}
