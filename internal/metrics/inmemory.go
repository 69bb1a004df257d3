package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests          uint64
	HTTPServerErrors      uint64
	HTTPDurationTotalNs   int64
	RateLimited           uint64
	LoginSuccess          uint64
	LoginFailed           uint64
	TasksCreated          uint64
	TasksUpdated          uint64
	TasksDeleted          uint64
	MeetingsCreated       uint64
	ChatMessagesSent      uint64
	AICompletions         uint64
	AIRateLimited         uint64
	AITokens              int64
	ActivityPublished     uint64
	ActivityDropped       uint64
	ActivityProcessed     uint64
	ActivityFailed        uint64
	ActivitySkipped       uint64
	ActivityBatches       uint64
	ActivityBatchTotalNs  int64
	NotificationsSent     uint64
	NotificationsFailed   uint64
	NotificationsExhaust  uint64
	NotificationsSkipped  uint64
	NotificationQueueSize int64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint.
type InMemoryRecorder struct {
	httpRequests          uint64
	httpServerErrors      uint64
	httpDurationTotalNs   int64
	rateLimited           uint64
	loginSuccess          uint64
	loginFailed           uint64
	tasksCreated          uint64
	tasksUpdated          uint64
	tasksDeleted          uint64
	meetingsCreated       uint64
	chatMessagesSent      uint64
	aiCompletions         uint64
	aiRateLimited         uint64
	aiTokens              int64
	activityPublished     uint64
	activityDropped       uint64
	activityProcessed     uint64
	activityFailed        uint64
	activitySkipped       uint64
	activityBatches       uint64
	activityBatchTotalNs  int64
	notificationsSent     uint64
	notificationsFailed   uint64
	notificationsExhaust  uint64
	notificationsSkipped  uint64
	notificationQueueSize int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		HTTPRequests:          atomic.LoadUint64(&m.httpRequests),
		HTTPServerErrors:      atomic.LoadUint64(&m.httpServerErrors),
		HTTPDurationTotalNs:   atomic.LoadInt64(&m.httpDurationTotalNs),
		RateLimited:           atomic.LoadUint64(&m.rateLimited),
		LoginSuccess:          atomic.LoadUint64(&m.loginSuccess),
		LoginFailed:           atomic.LoadUint64(&m.loginFailed),
		TasksCreated:          atomic.LoadUint64(&m.tasksCreated),
		TasksUpdated:          atomic.LoadUint64(&m.tasksUpdated),
		TasksDeleted:          atomic.LoadUint64(&m.tasksDeleted),
		MeetingsCreated:       atomic.LoadUint64(&m.meetingsCreated),
		ChatMessagesSent:      atomic.LoadUint64(&m.chatMessagesSent),
		AICompletions:         atomic.LoadUint64(&m.aiCompletions),
		AIRateLimited:         atomic.LoadUint64(&m.aiRateLimited),
		AITokens:              atomic.LoadInt64(&m.aiTokens),
		ActivityPublished:     atomic.LoadUint64(&m.activityPublished),
		ActivityDropped:       atomic.LoadUint64(&m.activityDropped),
		ActivityProcessed:     atomic.LoadUint64(&m.activityProcessed),
		ActivityFailed:        atomic.LoadUint64(&m.activityFailed),
		ActivitySkipped:       atomic.LoadUint64(&m.activitySkipped),
		ActivityBatches:       atomic.LoadUint64(&m.activityBatches),
		ActivityBatchTotalNs:  atomic.LoadInt64(&m.activityBatchTotalNs),
		NotificationsSent:     atomic.LoadUint64(&m.notificationsSent),
		NotificationsFailed:   atomic.LoadUint64(&m.notificationsFailed),
		NotificationsExhaust:  atomic.LoadUint64(&m.notificationsExhaust),
		NotificationsSkipped:  atomic.LoadUint64(&m.notificationsSkipped),
		NotificationQueueSize: atomic.LoadInt64(&m.notificationQueueSize),
	}
}

// ObserveHTTPRequest records a completed request.
func (m *InMemoryRecorder) ObserveHTTPRequest(status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
	atomic.AddInt64(&m.httpDurationTotalNs, duration.Nanoseconds())
	if status >= 500 {
		atomic.AddUint64(&m.httpServerErrors, 1)
	}
}

// IncRateLimited counts a request rejected by a rate limiter.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}

// IncLogin counts a login attempt.
func (m *InMemoryRecorder) IncLogin(success bool) {
	if success {
		atomic.AddUint64(&m.loginSuccess, 1)
		return
	}
	atomic.AddUint64(&m.loginFailed, 1)
}

func (m *InMemoryRecorder) IncTaskCreated()     { atomic.AddUint64(&m.tasksCreated, 1) }
func (m *InMemoryRecorder) IncTaskUpdated()     { atomic.AddUint64(&m.tasksUpdated, 1) }
func (m *InMemoryRecorder) IncTaskDeleted()     { atomic.AddUint64(&m.tasksDeleted, 1) }
func (m *InMemoryRecorder) IncMeetingCreated()  { atomic.AddUint64(&m.meetingsCreated, 1) }
func (m *InMemoryRecorder) IncChatMessageSent() { atomic.AddUint64(&m.chatMessagesSent, 1) }
func (m *InMemoryRecorder) IncAICompletion()    { atomic.AddUint64(&m.aiCompletions, 1) }
func (m *InMemoryRecorder) IncAIRateLimited()   { atomic.AddUint64(&m.aiRateLimited, 1) }

// AddAITokens accumulates estimated assistant tokens.
func (m *InMemoryRecorder) AddAITokens(tokens int64) {
	atomic.AddInt64(&m.aiTokens, tokens)
}

// IncActivityEventPublished counts a publish attempt by outcome.
func (m *InMemoryRecorder) IncActivityEventPublished(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.activityPublished, 1)
	case "dropped":
		atomic.AddUint64(&m.activityDropped, 1)
	}
}

// IncActivityEventProcessed counts a consumed event by outcome.
func (m *InMemoryRecorder) IncActivityEventProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.activityProcessed, 1)
	case "failed":
		atomic.AddUint64(&m.activityFailed, 1)
	case "skipped":
		atomic.AddUint64(&m.activitySkipped, 1)
	}
}

// ObserveActivityBatchSize counts a processed batch.
func (m *InMemoryRecorder) ObserveActivityBatchSize(size int) {
	atomic.AddUint64(&m.activityBatches, 1)
}

// ObserveActivityBatchDuration records batch processing time.
func (m *InMemoryRecorder) ObserveActivityBatchDuration(duration time.Duration) {
	atomic.AddInt64(&m.activityBatchTotalNs, duration.Nanoseconds())
}

// IncNotificationDelivery counts a delivery attempt by outcome.
func (m *InMemoryRecorder) IncNotificationDelivery(status string) {
	switch status {
	case "sent":
		atomic.AddUint64(&m.notificationsSent, 1)
	case "failed":
		atomic.AddUint64(&m.notificationsFailed, 1)
	case "exhausted":
		atomic.AddUint64(&m.notificationsExhaust, 1)
	case "skipped":
		atomic.AddUint64(&m.notificationsSkipped, 1)
	}
}

// SetNotificationQueueDepth records the pending email count.
func (m *InMemoryRecorder) SetNotificationQueueDepth(depth int64) {
	atomic.StoreInt64(&m.notificationQueueSize, depth)
}
