package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/commandgrid/pmt/internal/middleware"
	"github.com/commandgrid/pmt/internal/service"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password."},
	{service.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token"},
	{service.ErrWrongPassword, http.StatusUnauthorized, "WRONG_PASSWORD", "Current password is incorrect"},
	{service.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions"},

	{service.ErrCompanyNotFound, http.StatusNotFound, "COMPANY_NOT_FOUND", "Company not found"},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{service.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project not found"},
	{service.ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found"},
	{service.ErrMeetingNotFound, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found"},
	{service.ErrRoomNotFound, http.StatusNotFound, "ROOM_NOT_FOUND", "Chat room not found"},
	{service.ErrMessageNotFound, http.StatusNotFound, "MESSAGE_NOT_FOUND", "Message not found"},
	{service.ErrTeamNotFound, http.StatusNotFound, "TEAM_NOT_FOUND", "Team not found"},
	{service.ErrNotificationNotFound, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found"},
	{service.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found"},
	{service.ErrInteractionNotFound, http.StatusNotFound, "INTERACTION_NOT_FOUND", "Interaction not found"},
	{service.ErrRecommendationNotFound, http.StatusNotFound, "RECOMMENDATION_NOT_FOUND", "Recommendation not found"},
	{service.ErrSectionNotFound, http.StatusNotFound, "SECTION_NOT_FOUND", "Settings section not found"},
	{service.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND", "Calendar event not found"},
	{service.ErrNotMember, http.StatusNotFound, "NOT_MEMBER", "User is not a member"},

	{service.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN", "Email already registered"},
	{service.ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN", "Username already taken"},
	{service.ErrAlreadyMember, http.StatusConflict, "ALREADY_MEMBER", "User is already a member"},
	{service.ErrTeamNameTaken, http.StatusConflict, "TEAM_NAME_TAKEN", "Team name already exists"},
	{service.ErrSessionClosed, http.StatusConflict, "SESSION_CLOSED", "Session is closed"},

	{service.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE", "Invalid role"},
	{service.ErrNotImpersonating, http.StatusBadRequest, "NOT_IMPERSONATING", "Not an impersonation session"},
	{service.ErrSelfAction, http.StatusBadRequest, "SELF_ACTION", "Operation not allowed on your own account"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS", "Invalid status"},
	{service.ErrInvalidPriority, http.StatusBadRequest, "INVALID_PRIORITY", "Invalid priority"},
	{service.ErrInvalidContext, http.StatusBadRequest, "INVALID_CONTEXT", "Invalid meeting context"},
	{service.ErrInvalidDateFilter, http.StatusBadRequest, "INVALID_DATE_FILTER", "Invalid date filter format"},
	{service.ErrInvalidDateRange, http.StatusBadRequest, "INVALID_DATE_RANGE", "Invalid date range"},
	{service.ErrInvalidDateTime, http.StatusBadRequest, "INVALID_DATE_TIME", "Invalid date or time"},
	{service.ErrInvalidFormat, http.StatusBadRequest, "INVALID_FORMAT", "Invalid format specified"},
	{service.ErrInvalidChannel, http.StatusBadRequest, "INVALID_CHANNEL", "Invalid notification channel"},
	{service.ErrInvalidSettings, http.StatusBadRequest, "INVALID_SETTINGS", "Invalid settings document"},
	{service.ErrInvalidRating, http.StatusBadRequest, "INVALID_RATING", "Rating must be between 1 and 5"},
	{service.ErrInvalidTimeRange, http.StatusBadRequest, "INVALID_TIME_RANGE", "timeRange must be week, month or year"},
	{service.ErrInvalidCursor, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor"},
	{service.ErrNothingToUpdate, http.StatusBadRequest, "NOTHING_TO_UPDATE", "No fields to update"},
	{service.ErrHostCannotLeave, http.StatusBadRequest, "HOST_CANNOT_LEAVE", "Host cannot leave the meeting"},
	{service.ErrInvalidRecurrence, http.StatusBadRequest, "INVALID_RECURRENCE", "Unsupported recurrence rule"},
	{service.ErrInvalidReminder, http.StatusBadRequest, "INVALID_REMINDER", "Reminders must be between 0 and 40320 minutes"},

	{service.ErrTokenLimit, http.StatusTooManyRequests, "TOKEN_LIMIT", "Daily token limit reached"},
	{service.ErrVideoNotConfigured, http.StatusInternalServerError, "VIDEO_NOT_CONFIGURED", "Video service not configured"},
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var invalidIDs *service.InvalidIDsError
	if errors.As(err, &invalidIDs) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "Some users do not belong to this company",
			"code":       "INVALID_IDS",
			"invalidIds": invalidIDs.IDs,
		})
		return
	}

	var rateLimited *service.RateLimitError
	if errors.As(err, &rateLimited) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":          "Rate limit exceeded",
			"code":           "RATE_LIMITED",
			"limit":          rateLimited.Result.Limit,
			"current":        rateLimited.Result.Current,
			"resetInSeconds": rateLimited.Result.ResetInSeconds,
		})
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.message)
			return
		}
	}

	logger.Error("internal_error",
		"error", err,
		"endpoint", r.Method+" "+r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}
