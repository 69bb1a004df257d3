package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// TeamHandler handles HTTP requests for team operations.
type TeamHandler struct {
	svc    *service.TeamService
	logger *slog.Logger
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(svc *service.TeamService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{svc: svc, logger: logger}
}

// List handles GET /api/teams.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	teams, err := h.svc.List(r.Context(), ac)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// Create handles POST /api/teams.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.TeamRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	team, err := h.svc.Create(r.Context(), ac, teamInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// Get handles GET /api/teams/{id}.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	team, err := h.svc.Get(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Update handles PUT /api/teams/{id}.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.TeamRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	team, err := h.svc.Update(r.Context(), ac, chi.URLParam(r, "id"), teamInput(req))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Delete handles DELETE /api/teams/{id}.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), ac, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Team deleted successfully")
}

// Members handles GET /api/teams/{id}/members.
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	members, err := h.svc.Members(r.Context(), ac, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember handles POST /api/teams/{id}/members.
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.AddMemberRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.AddMember(r.Context(), ac, chi.URLParam(r, "id"), req.UserID, req.Role); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Member added successfully")
}

// RemoveMember handles DELETE /api/teams/{id}/members/{userId}.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(r.Context(), ac, chi.URLParam(r, "id"), chi.URLParam(r, "userId")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Member removed successfully")
}

// UpdateMemberRole handles PUT /api/teams/{id}/members/{userId}/role.
func (h *TeamHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.MemberRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.svc.UpdateMemberRole(r.Context(), ac, chi.URLParam(r, "id"), chi.URLParam(r, "userId"), req.Role)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Member role updated")
}

func teamInput(req dto.TeamRequest) service.TeamInput {
	return service.TeamInput{Name: req.Name, Description: req.Description, LeadID: req.LeadID}
}
