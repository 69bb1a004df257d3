package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(status int, duration time.Duration) {}
func (n *NoopRecorder) IncRateLimited()                                       {}
func (n *NoopRecorder) IncLogin(success bool)                                 {}
func (n *NoopRecorder) IncTaskCreated()                                       {}
func (n *NoopRecorder) IncTaskUpdated()                                       {}
func (n *NoopRecorder) IncTaskDeleted()                                       {}
func (n *NoopRecorder) IncMeetingCreated()                                    {}
func (n *NoopRecorder) IncChatMessageSent()                                   {}
func (n *NoopRecorder) IncAICompletion()                                      {}
func (n *NoopRecorder) IncAIRateLimited()                                     {}
func (n *NoopRecorder) AddAITokens(tokens int64)                              {}
func (n *NoopRecorder) IncActivityEventPublished(status string)               {}
func (n *NoopRecorder) IncActivityEventProcessed(status string)               {}
func (n *NoopRecorder) ObserveActivityBatchSize(size int)                     {}
func (n *NoopRecorder) ObserveActivityBatchDuration(duration time.Duration)   {}
func (n *NoopRecorder) IncNotificationDelivery(status string)                 {}
func (n *NoopRecorder) SetNotificationQueueDepth(depth int64)                 {}
