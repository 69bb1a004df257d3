package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// AdminHandler handles company administration endpoints.
type AdminHandler struct {
	svc    *service.AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	users, err := h.svc.ListUsers(r.Context(), ac.CompanyID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateUserRole handles PUT /api/admin/users/{id}/role.
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.UpdateRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateUserRole(r.Context(), ac, chi.URLParam(r, "id"), req.Role, requestMeta(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/admin/users/{id}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(r.Context(), ac, chi.URLParam(r, "id"), requestMeta(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted successfully")
}

// Impersonate handles POST /api/admin/impersonate/{userId}.
func (h *AdminHandler) Impersonate(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Impersonate(r.Context(), ac, chi.URLParam(r, "userId"), requestMeta(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// EndImpersonation handles POST /api/admin/impersonate/end. It is called
// with the impersonation token, so it is not behind the admin role check.
func (h *AdminHandler) EndImpersonation(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.svc.EndImpersonation(r.Context(), ac, requestMeta(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AuditLogs handles GET /api/admin/audit-logs.
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	page, err := h.svc.AuditLogs(r.Context(), ac.CompanyID,
		queryInt(r, "page", 1),
		queryInt(r, "limit", 20),
		r.URL.Query().Get("action"),
	)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context(), ac.CompanyID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Roles handles GET /api/admin/roles.
func (h *AdminHandler) Roles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Roles())
}

// Threats handles GET /api/admin/security/threats.
func (h *AdminHandler) Threats(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	threats, err := h.svc.Threats(r.Context(), ac.CompanyID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threats": threats})
}

// Scan handles POST /api/admin/security/scan.
func (h *AdminHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Scan(r.Context(), ac, requestMeta(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SystemHealth handles GET /api/admin/system/health.
func (h *AdminHandler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SystemHealth(r.Context()))
}
