package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// MeetingHandler handles HTTP requests for meeting operations.
type MeetingHandler struct {
	svc    *service.MeetingService
	logger *slog.Logger
}

// NewMeetingHandler creates a new MeetingHandler.
func NewMeetingHandler(svc *service.MeetingService, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{svc: svc, logger: logger}
}

// List handles GET /api/meetings.
func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	meetings, err := h.svc.List(r.Context(), ac)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meetings)
}

// Count handles GET /api/meetings/count.
func (h *MeetingHandler) Count(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	n, err := h.svc.Count(r.Context(), ac, r.URL.Query().Get("date"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// Create handles POST /api/meetings.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.CreateMeetingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	meeting, err := h.svc.Create(r.Context(), ac, service.CreateMeetingInput{
		Title:           req.Title,
		Description:     req.Description,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Context:         req.Context,
		ProjectID:       req.ProjectID,
		ParticipantIDs:  req.ParticipantIDs,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

// Get handles GET /api/meetings/{id}.
func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	meeting, err := h.svc.Get(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

// Update handles PUT /api/meetings/{id}.
func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.UpdateMeetingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	meeting, err := h.svc.Update(r.Context(), ac, chi.URLParam(r, "id"), service.UpdateMeetingInput{
		Title:           req.Title,
		Description:     req.Description,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Context:         req.Context,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

// Delete handles DELETE /api/meetings/{id}.
func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), ac, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Meeting deleted successfully")
}

// Join handles POST /api/meetings/{id}/join.
func (h *MeetingHandler) Join(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	joined, err := h.svc.Join(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	message := "Already a participant"
	if joined {
		message = "Joined meeting successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "joined": joined})
}

// Leave handles POST /api/meetings/{id}/leave.
func (h *MeetingHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.Leave(r.Context(), ac, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Left meeting successfully")
}

// Participants handles GET /api/meetings/{id}/participants.
func (h *MeetingHandler) Participants(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	participants, err := h.svc.Participants(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

// AddParticipants handles POST /api/meetings/{id}/participants.
func (h *MeetingHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.AddParticipantsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	added, err := h.svc.AddParticipants(r.Context(), ac, chi.URLParam(r, "id"), req.ParticipantIDs)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Participants added successfully",
		"added":   added,
	})
}

// VideoToken handles POST /api/meetings/{id}/video-token.
func (h *MeetingHandler) VideoToken(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.VideoTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.svc.VideoToken(r.Context(), ac, chi.URLParam(r, "id"), req.ChannelName, req.UID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
