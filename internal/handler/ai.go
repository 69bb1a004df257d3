package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commandgrid/pmt/internal/handler/dto"
	"github.com/commandgrid/pmt/internal/service"
)

// AIHandler handles assistant endpoints.
type AIHandler struct {
	svc    *service.AIService
	logger *slog.Logger
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(svc *service.AIService, logger *slog.Logger) *AIHandler {
	return &AIHandler{svc: svc, logger: logger}
}

// Usage handles GET /api/ai/usage.
func (h *AIHandler) Usage(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	usage, err := h.svc.Usage(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// Complete handles POST /api/ai/complete.
func (h *AIHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.PromptRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.Complete(r.Context(), ac.UserID, req.Prompt)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateSession handles POST /api/ai/sessions.
func (h *AIHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.CreateSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.CreateSession(r.Context(), ac.UserID, req.Context, req.Prompt)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Sessions handles GET /api/ai/sessions.
func (h *AIHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	sessions, err := h.svc.Sessions(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Session handles GET /api/ai/sessions/{id}.
func (h *AIHandler) Session(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.Session(r.Context(), ac.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CloseSession handles PUT /api/ai/sessions/{id}/close.
func (h *AIHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.svc.CloseSession(r.Context(), ac.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Session closed")
}

// Interact handles POST /api/ai/sessions/{id}/interact.
func (h *AIHandler) Interact(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.InteractRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.Interact(r.Context(), ac.UserID, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Feedback handles POST /api/ai/feedback.
func (h *AIHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.FeedbackRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fb, err := h.svc.Feedback(r.Context(), ac.UserID, req.InteractionID, req.Rating, req.Comments)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

// AnalyzeTask handles POST /api/ai/analyze-task/{taskId}.
func (h *AIHandler) AnalyzeTask(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	analysis, err := h.svc.AnalyzeTask(r.Context(), ac, chi.URLParam(r, "taskId"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// Recommendations handles GET /api/ai/recommendations.
func (h *AIHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	recs, err := h.svc.Recommendations(r.Context(), ac.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// UpdateRecommendation handles PUT /api/ai/recommendations/{id}.
func (h *AIHandler) UpdateRecommendation(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.RecommendationUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.svc.UpdateRecommendation(r.Context(), ac.UserID, chi.URLParam(r, "id"), req.Viewed, req.ActedUpon)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Analytics handles GET /api/ai/analytics.
func (h *AIHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}

	analytics, err := h.svc.Analytics(r.Context(), ac.UserID, r.URL.Query().Get("timeRange"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// GenerateReport handles POST /api/ai/generate-report.
func (h *AIHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	ac, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.ReportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	report, err := h.svc.GenerateReport(r.Context(), ac.UserID, req.ReportType, req.Parameters)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
