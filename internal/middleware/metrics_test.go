package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/commandgrid/pmt/internal/metrics"
)

func TestMetrics(t *testing.T) {
	rec := metrics.NewInMemory()

	statuses := []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError}
	for _, status := range statuses {
		h := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	}

	snap := rec.Snapshot()
	if snap.HTTPRequests != 3 {
		t.Errorf("HTTPRequests = %d, want 3", snap.HTTPRequests)
	}
	if snap.HTTPServerErrors != 1 {
		t.Errorf("HTTPServerErrors = %d, want 1", snap.HTTPServerErrors)
	}
}
