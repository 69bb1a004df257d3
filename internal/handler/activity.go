package handler

import (
	"log/slog"
	"net/http"

	"github.com/commandgrid/pmt/internal/service"
)

// ActivityHandler serves the company activity feed.
type ActivityHandler struct {
	svc    *service.ActivityService
	logger *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(svc *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger}
}

// Recent handles GET /api/activities.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.Recent(r.Context(), ac, queryInt(r, "limit", 0))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
