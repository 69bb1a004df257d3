package handler

import (
	"log/slog"
	"net/http"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// AuthHandler handles authentication and account endpoints.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Email and password are required")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	}, requestMeta(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

// RegisterCompany handles POST /api/register/company.
func (h *AuthHandler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterCompanyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.RegisterCompany(r.Context(), service.RegisterCompanyInput{
		CompanyName:   req.CompanyName,
		Domain:        req.Domain,
		AdminName:     req.AdminName,
		AdminEmail:    req.AdminEmail,
		AdminUsername: req.AdminUsername,
		Password:      req.Password,
	}, requestMeta(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Refresh handles POST /api/token/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.RefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.Logout(r.Context(), ac, req.RefreshToken, requestMeta(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Me(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/me.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), ac.UserID, service.ProfileInput{
		Name:           req.Name,
		Username:       req.Username,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword handles PUT /api/me/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.ChangePassword(r.Context(), ac, req.CurrentPassword, req.NewPassword, requestMeta(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}
