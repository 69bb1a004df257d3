// Package notify delivers email notifications from the notifications outbox.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/commandgrid/pmt/internal/metrics"
)

const (
	// DefaultBatchSize is the number of notifications to process per poll.
	DefaultBatchSize = 50
	// DefaultPollInterval is the time between polls for pending notifications.
	DefaultPollInterval = 5 * time.Second
	// DefaultMetricsInterval is how often to update queue depth metrics.
	DefaultMetricsInterval = 10 * time.Second
)

// Store is the outbox the worker drains.
type Store interface {
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*Delivery, error)
	MarkSent(ctx context.Context, id string) error
	MarkSkipped(ctx context.Context, id, reason string) error
	MarkFailure(ctx context.Context, id, errMsg string, nextAttemptAt time.Time, exhausted bool) error
	QueueDepth(ctx context.Context) (int64, error)
}

// Worker sends pending email notifications.
type Worker struct {
	store           Store
	mailer          Mailer
	renderer        *Renderer
	logger          *slog.Logger
	metrics         metrics.Recorder
	batchSize       int
	pollInterval    time.Duration
	metricsInterval time.Duration
	maxAttempts     int
	lastMetrics     time.Time
	started         bool
}

// NewWorker creates a new notification delivery worker.
func NewWorker(store Store, mailer Mailer, renderer *Renderer, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		store:           store,
		mailer:          mailer,
		renderer:        renderer,
		logger:          logger.With("component", "notify.worker"),
		metrics:         recorder,
		batchSize:       DefaultBatchSize,
		pollInterval:    DefaultPollInterval,
		metricsInterval: DefaultMetricsInterval,
		maxAttempts:     DefaultMaxAttempts,
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetPollInterval overrides the default poll interval.
func (w *Worker) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}

// SetMaxAttempts caps deliveries whose row carries no limit of its own.
func (w *Worker) SetMaxAttempts(n int) {
	if n > 0 {
		w.maxAttempts = n
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	w.logger.Info("notification worker started", "poll_interval", w.pollInterval.String())

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
			}
		}
	}
}

// processOnce claims and delivers a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	deliveries, err := w.store.ClaimPending(ctx, w.batchSize, DefaultLease)
	if err != nil {
		return fmt.Errorf("claim pending notifications: %w", err)
	}

	for _, d := range deliveries {
		if err := w.deliver(ctx, d); err != nil {
			w.logger.Warn("delivery bookkeeping failed",
				"notification_id", d.Notification.ID,
				"error", err,
			)
		}
	}
	return nil
}

// deliver sends one notification and records the outcome.
func (w *Worker) deliver(ctx context.Context, d *Delivery) error {
	n := d.Notification

	if d.Preferences != nil && !d.Preferences.AllowsEmail(n.Type, n.Priority) {
		w.logger.Debug("notification skipped by preferences",
			"notification_id", n.ID,
			"type", n.Type,
			"priority", n.Priority,
		)
		w.metrics.IncNotificationDelivery("skipped")
		return w.store.MarkSkipped(ctx, n.ID, "suppressed by recipient preferences")
	}

	if d.RecipientEmail == "" {
		w.metrics.IncNotificationDelivery("exhausted")
		return w.store.MarkFailure(ctx, n.ID, ErrNoRecipient.Error(), time.Now(), true)
	}

	subject, html, err := w.renderer.Render(n, d.RecipientName)
	if err != nil {
		return w.handleDeliveryError(ctx, d, fmt.Errorf("%w: %v", ErrRender, err))
	}

	start := time.Now()
	err = w.mailer.Send(ctx, Email{To: d.RecipientEmail, Subject: subject, HTML: html})
	if err != nil {
		return w.handleDeliveryError(ctx, d, err)
	}

	w.logger.Info("notification_sent",
		"notification_id", n.ID,
		"type", n.Type,
		"attempt", n.AttemptCount+1,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	w.metrics.IncNotificationDelivery("sent")
	return w.store.MarkSent(ctx, n.ID)
}

// handleDeliveryError schedules a retry or gives up.
func (w *Worker) handleDeliveryError(ctx context.Context, d *Delivery, sendErr error) error {
	n := d.Notification
	maxAttempts := n.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = w.maxAttempts
	}

	nextAttempt := n.AttemptCount + 1
	exhausted := IsExhausted(nextAttempt, maxAttempts) || isPermanent(sendErr)

	status := "failed"
	if exhausted {
		status = "exhausted"
	}

	w.logger.Warn("notification delivery failed",
		"notification_id", n.ID,
		"attempt", nextAttempt,
		"exhausted", exhausted,
		"error", sendErr,
	)
	w.metrics.IncNotificationDelivery(status)

	return w.store.MarkFailure(ctx, n.ID, sendErr.Error(), NextRetryAt(n.AttemptCount, time.Now()), exhausted)
}

// maybeUpdateQueueDepth periodically updates the queue depth metric.
func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	depth, err := w.store.QueueDepth(ctx)
	if err != nil {
		w.logger.Warn("failed to get queue depth", "error", err)
		return
	}
	w.metrics.SetNotificationQueueDepth(depth)
}
