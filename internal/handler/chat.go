package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// ChatHandler handles HTTP requests for chat rooms and messages.
type ChatHandler struct {
	svc    *service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// ListRooms handles GET /api/chat/rooms.
func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	rooms, err := h.svc.ListRooms(r.Context(), ac)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// CreateRoom handles POST /api/chat/rooms.
func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.CreateRoomRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	room, err := h.svc.CreateRoom(r.Context(), ac, service.CreateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		ProjectID:   req.ProjectID,
		TeamID:      req.TeamID,
		IsPrivate:   req.IsPrivate,
		MemberIDs:   req.MemberIDs,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// Room handles GET /api/chat/rooms/{id}.
func (h *ChatHandler) Room(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Room(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AddMember handles POST /api/chat/rooms/{id}/members.
func (h *ChatHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.RoomMemberRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	room, err := h.svc.AddMember(r.Context(), ac, chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// SendMessage handles POST /api/chat/rooms/{id}/messages.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := req.Text()
	if text == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Message content is required")
		return
	}

	msg, err := h.svc.SendMessage(r.Context(), ac, chi.URLParam(r, "id"), text)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Pinned handles GET /api/chat/rooms/{id}/pinned.
func (h *ChatHandler) Pinned(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	msgs, err := h.svc.Pinned(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// Pin handles POST /api/chat/rooms/{id}/pin/{messageId}.
func (h *ChatHandler) Pin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, true)
}

// Unpin handles POST /api/chat/rooms/{id}/unpin/{messageId}.
func (h *ChatHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, false)
}

func (h *ChatHandler) setPinned(w http.ResponseWriter, r *http.Request, pinned bool) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	err := h.svc.SetPinned(r.Context(), ac, chi.URLParam(r, "id"), chi.URLParam(r, "messageId"), pinned)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	message := "Message unpinned"
	if pinned {
		message = "Message pinned"
	}
	writeMessage(w, http.StatusOK, message)
}

// Report handles POST /api/chat/report and streams the rendered attachment.
func (h *ChatHandler) Report(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.ChatReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.svc.Report(r.Context(), ac, service.ChatReportInput{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Format:    req.Format,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report.Body); err != nil {
		h.logger.Warn("chat_report_write_failed", "user_id", ac.UserID, "error", err)
	}
}
