// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(status int, duration time.Duration)
	IncRateLimited()

	// Auth metrics
	IncLogin(success bool)

	// Domain metrics
	IncTaskCreated()
	IncTaskUpdated()
	IncTaskDeleted()
	IncMeetingCreated()
	IncChatMessageSent()
	IncAICompletion()
	IncAIRateLimited()
	AddAITokens(tokens int64)

	// Activity pipeline metrics
	IncActivityEventPublished(status string) // status: "success" or "dropped"
	IncActivityEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveActivityBatchSize(size int)
	ObserveActivityBatchDuration(duration time.Duration)

	// Notification delivery metrics
	IncNotificationDelivery(status string) // status: "sent", "failed", "exhausted", "skipped"
	SetNotificationQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
