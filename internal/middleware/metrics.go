package middleware

import (
	"net/http"
	"time"

	"github.com/commandgrid/pmt/internal/metrics"
)

// Metrics records the status and latency of every request.
func Metrics(recorder metrics.Recorder) func(http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			recorder.ObserveHTTPRequest(wrapped.status, time.Since(start))
		})
	}
}
