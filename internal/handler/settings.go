package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/service"
)

// SettingsHandler handles per-user settings documents.
type SettingsHandler struct {
	svc    *service.SettingsService
	logger *slog.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(svc *service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, logger: logger}
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Get(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Replace handles PUT /api/settings.
func (h *SettingsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var doc service.Settings
	if !decodeJSON(w, r, &doc) {
		return
	}

	saved, err := h.svc.Replace(r.Context(), ac.UserID, doc)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// UpdateSection handles PUT /api/settings/{section}.
func (h *SettingsHandler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var value json.RawMessage
	if !decodeJSON(w, r, &value) {
		return
	}

	saved, err := h.svc.UpdateSection(r.Context(), ac.UserID, chi.URLParam(r, "section"), value)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Reset handles POST /api/settings/reset.
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Reset(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
