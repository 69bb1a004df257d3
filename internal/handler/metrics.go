package handler

import (
	"fmt"
	"net/http"

	"github.com/commandgrid/pmt/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "pmt_http_requests_total %d\n", snap.HTTPRequests)
	writeMetric(w, "pmt_http_server_errors_total %d\n", snap.HTTPServerErrors)
	writeMetric(w, "pmt_http_request_duration_seconds_sum %.6f\n", float64(snap.HTTPDurationTotalNs)/1e9)
	writeMetric(w, "pmt_rate_limited_total %d\n", snap.RateLimited)

	writeMetric(w, "pmt_logins_total{status=\"success\"} %d\n", snap.LoginSuccess)
	writeMetric(w, "pmt_logins_total{status=\"failed\"} %d\n", snap.LoginFailed)

	writeMetric(w, "pmt_tasks_created_total %d\n", snap.TasksCreated)
	writeMetric(w, "pmt_tasks_updated_total %d\n", snap.TasksUpdated)
	writeMetric(w, "pmt_tasks_deleted_total %d\n", snap.TasksDeleted)
	writeMetric(w, "pmt_meetings_created_total %d\n", snap.MeetingsCreated)
	writeMetric(w, "pmt_chat_messages_sent_total %d\n", snap.ChatMessagesSent)

	writeMetric(w, "pmt_ai_requests_total{status=\"allowed\"} %d\n", snap.AICompletions)
	writeMetric(w, "pmt_ai_requests_total{status=\"limited\"} %d\n", snap.AIRateLimited)
	writeMetric(w, "pmt_ai_tokens_total %d\n", snap.AITokens)

	writeMetric(w, "pmt_activity_events_published_total{status=\"success\"} %d\n", snap.ActivityPublished)
	writeMetric(w, "pmt_activity_events_published_total{status=\"dropped\"} %d\n", snap.ActivityDropped)
	writeMetric(w, "pmt_activity_events_processed_total{status=\"success\"} %d\n", snap.ActivityProcessed)
	writeMetric(w, "pmt_activity_events_processed_total{status=\"failed\"} %d\n", snap.ActivityFailed)
	writeMetric(w, "pmt_activity_events_processed_total{status=\"skipped\"} %d\n", snap.ActivitySkipped)
	writeMetric(w, "pmt_activity_batches_total %d\n", snap.ActivityBatches)
	writeMetric(w, "pmt_activity_batch_duration_seconds_sum %.6f\n", float64(snap.ActivityBatchTotalNs)/1e9)

	writeMetric(w, "pmt_notification_deliveries_total{status=\"sent\"} %d\n", snap.NotificationsSent)
	writeMetric(w, "pmt_notification_deliveries_total{status=\"failed\"} %d\n", snap.NotificationsFailed)
	writeMetric(w, "pmt_notification_deliveries_total{status=\"exhausted\"} %d\n", snap.NotificationsExhaust)
	writeMetric(w, "pmt_notification_deliveries_total{status=\"skipped\"} %d\n", snap.NotificationsSkipped)
	writeMetric(w, "pmt_notification_queue_depth %d\n", snap.NotificationQueueSize)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
