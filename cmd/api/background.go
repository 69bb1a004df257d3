package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/commandgrid/pmt/internal/server"
)

// startBackground runs fn until shutdown, then waits for it to return.
func startBackground(srv *server.Server, name string, logger *slog.Logger, fn func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("background component stopped", "name", name, "error", err)
		}
	}()

	srv.OnShutdown(name, func(shutdownCtx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
	})
}

// reminderSender is implemented by service.TaskService.
type reminderSender interface {
	SendDeadlineReminders(ctx context.Context, now time.Time) (int, error)
}

// reminderLoop sweeps for due tasks on a fixed interval.
type reminderLoop struct {
	tasks    reminderSender
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func newReminderLoop(tasks reminderSender, interval time.Duration, logger *slog.Logger) *reminderLoop {
	if interval <= 0 {
		interval = time.Hour
	}
	return &reminderLoop{
		tasks:    tasks,
		interval: interval,
		logger:   logger.With("component", "worker.reminders"),
		now:      time.Now,
	}
}

// Run sweeps once at start and then every interval until ctx is cancelled.
func (l *reminderLoop) Run(ctx context.Context) error {
	l.logger.Info("reminder loop started", "interval", l.interval.String())

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.sweep(ctx)
		select {
		case <-ctx.Done():
			l.logger.Info("reminder loop stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *reminderLoop) sweep(ctx context.Context) {
	if _, err := l.tasks.SendDeadlineReminders(ctx, l.now()); err != nil && ctx.Err() == nil {
		l.logger.Error("deadline reminder sweep failed", "error", err)
	}
}
