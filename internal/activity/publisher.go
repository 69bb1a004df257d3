// Package activity captures domain events and folds them into the activity feed.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commandgrid/pmt/internal/metrics"
)

const (
	// StreamKey is the Redis stream for activity events.
	StreamKey = "stream:activity_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:activity_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Event is the compact activity format written to the stream.
type Event struct {
	CompanyID  string          `json:"cid"`
	UserID     string          `json:"uid"`
	EntityType string          `json:"et"`
	EntityID   string          `json:"eid"`
	Action     string          `json:"a"`
	Details    json.RawMessage `json:"d,omitempty"`
	OccurredAt int64           `json:"t"` // Unix milliseconds
}

// NewEvent builds an event stamped with the current time. details may be nil.
func NewEvent(companyID, userID, entityType, entityID, action string, details any) Event {
	ev := Event{
		CompanyID:  companyID,
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OccurredAt: time.Now().UnixMilli(),
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			ev.Details = raw
		}
	}
	return ev
}

// Emitter is what domain services depend on to record activity.
type Emitter interface {
	PublishAsync(event Event)
}

// Discard is an Emitter that drops every event.
type Discard struct{}

// PublishAsync implements Emitter.
func (Discard) PublishAsync(Event) {}

// Publisher enqueues activity events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new activity event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "activity.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned.
func (p *Publisher) PublishAsync(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish activity event",
				"entity_type", event.EntityType,
				"action", event.Action,
				"error", err,
			)
			p.metrics.IncActivityEventPublished("dropped")
			return
		}

		p.logger.Debug("activity event published",
			"entity_type", event.EntityType,
			"action", event.Action,
			"stream_id", streamID,
		)
		p.metrics.IncActivityEventPublished("success")
	}()
}

// StreamLength reports the number of entries currently held in the stream.
func (p *Publisher) StreamLength(ctx context.Context) (int64, error) {
	n, err := p.redis.XLen(ctx, StreamKey).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("xlen: %w", err)
	}
	return n, nil
}
