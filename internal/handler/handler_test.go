package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_Info(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Info(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["name"] != "PMT API" || body["version"] != Version {
		t.Errorf("unexpected info %v", body)
	}
	if _, ok := body["uptimeSeconds"]; !ok {
		t.Error("uptimeSeconds missing")
	}
}

func TestHandler_Fallbacks(t *testing.T) {
	h := New()
	tests := []struct {
		name     string
		serve    http.HandlerFunc
		wantCode int
		wantErr  string
		wantKind string
	}{
		{"not found", h.NotFound, http.StatusNotFound, "resource not found", "NOT_FOUND"},
		{"method not allowed", h.MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.serve(rec, httptest.NewRequest(http.MethodPost, "/nowhere", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantErr || body.Code != tt.wantKind {
				t.Errorf("body = %+v, want %q/%q", body, tt.wantErr, tt.wantKind)
			}
		})
	}
}
