package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// CalendarHandler handles HTTP requests for calendar events.
type CalendarHandler struct {
	svc    *service.CalendarService
	logger *slog.Logger
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(svc *service.CalendarService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{svc: svc, logger: logger}
}

// List handles GET /api/admin/calendar/events?start=&end=&projectId=&showRecurring=.
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start, err := dto.ParseTime(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE_RANGE", "start must be a date or RFC 3339 timestamp")
		return
	}
	end, err := dto.ParseTime(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE_RANGE", "end must be a date or RFC 3339 timestamp")
		return
	}

	events, err := h.svc.List(r.Context(), ac, service.CalendarFilter{
		Start:         start,
		End:           end,
		ProjectID:     q.Get("projectId"),
		ShowRecurring: q.Get("showRecurring") != "false",
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Create handles POST /api/admin/calendar/events.
func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input := service.CreateEventInput{
		Title:          req.Title,
		Description:    req.Description,
		StartsAt:       req.StartsAt.Time,
		AllDay:         req.AllDay,
		ProjectID:      req.ProjectID,
		Color:          req.Color,
		Location:       req.Location,
		RecurrenceRule: req.RecurrenceRule,
		AttendeeIDs:    req.Attendees,
		Reminders:      req.Reminders,
	}
	if end := req.EndsAt.Ptr(); end != nil {
		input.EndsAt = *end
	}

	event, err := h.svc.Create(r.Context(), ac, input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Get handles GET /api/admin/calendar/events/{id}.
func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	event, err := h.svc.Get(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/admin/calendar/events/{id}.
func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), ac, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/admin/calendar/events/export?projectId=.
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	body, err := h.svc.Export(r.Context(), ac, r.URL.Query().Get("projectId"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("calendar_export_write_failed", "user_id", ac.UserID, "error", err)
	}
}
