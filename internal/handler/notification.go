package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Create handles POST /api/notifications.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.CreateNotificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	n, err := h.svc.Create(r.Context(), ac, service.CreateNotificationInput{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Priority: req.Priority,
		Channel:  req.Channel,
		Metadata: req.Metadata,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// List handles GET /api/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.svc.List(r.Context(), ac.UserID, queryBool(r, "unread"), queryInt(r, "limit", 0))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/notifications/{id}.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	n, err := h.svc.Get(r.Context(), ac.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkRead handles PUT /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.MarkRead(r.Context(), ac.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification marked as read")
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	n, err := h.svc.MarkAllRead(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), ac.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification deleted")
}

// DeleteAll handles DELETE /api/notifications.
func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	n, err := h.svc.DeleteAll(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// Preferences handles GET /api/notifications/preferences.
func (h *NotificationHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	prefs, err := h.svc.Preferences(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/notifications/preferences.
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.PreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs, err := h.svc.UpdatePreferences(r.Context(), ac.UserID, service.PreferencesInput{
		EnableEmail:      req.EnableEmail,
		EnablePush:       req.EnablePush,
		EnableSMS:        req.EnableSMS,
		MinPriorityLevel: req.MinPriorityLevel,
		MutedTypes:       req.MutedTypes,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
