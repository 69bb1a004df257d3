// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"

	"github.com/commandgrid/pmt/internal/assistant"
)

// Service errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidRole        = errors.New("invalid role")
	ErrNotImpersonating   = errors.New("not an impersonation session")
	ErrSelfAction         = errors.New("operation not allowed on your own account")
	ErrForbidden          = errors.New("insufficient permissions")

	ErrCompanyNotFound        = errors.New("company not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrProjectNotFound        = errors.New("project not found")
	ErrTaskNotFound           = errors.New("task not found")
	ErrMeetingNotFound        = errors.New("meeting not found")
	ErrRoomNotFound           = errors.New("chat room not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrTeamNotFound           = errors.New("team not found")
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrInteractionNotFound    = errors.New("interaction not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrSectionNotFound        = errors.New("settings section not found")
	ErrEventNotFound          = errors.New("calendar event not found")

	ErrAlreadyMember = errors.New("user is already a member")
	ErrNotMember     = errors.New("user is not a member")
	ErrTeamNameTaken = errors.New("team name already exists")

	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidContext     = errors.New("invalid meeting context")
	ErrInvalidDateFilter  = errors.New("invalid date filter")
	ErrInvalidDateRange   = errors.New("invalid date range")
	ErrInvalidDateTime    = errors.New("invalid date or time")
	ErrInvalidFormat      = errors.New("invalid format specified")
	ErrInvalidChannel     = errors.New("invalid notification channel")
	ErrInvalidSettings    = errors.New("invalid settings document")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrInvalidTimeRange   = errors.New("timeRange must be week, month or year")
	ErrInvalidCursor      = errors.New("invalid pagination cursor")
	ErrNothingToUpdate    = errors.New("no fields to update")
	ErrHostCannotLeave    = errors.New("host cannot leave the meeting")
	ErrSessionClosed      = errors.New("session is closed")
	ErrTokenLimit         = errors.New("daily token limit reached")
	ErrVideoNotConfigured = errors.New("video service not configured")
	ErrInvalidRecurrence  = errors.New("invalid recurrence rule")
	ErrInvalidReminder    = errors.New("reminders must be between 0 and 40320 minutes")
)

// InvalidIDsError reports referenced users that do not belong to the company.
type InvalidIDsError struct {
	IDs []string
}

func (e *InvalidIDsError) Error() string {
	return fmt.Sprintf("%d ids do not belong to this company", len(e.IDs))
}

// RateLimitError is returned when the assistant request rate is exceeded.
type RateLimitError struct {
	Result assistant.RateLimitResult
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d of %d requests this minute", e.Result.Current, e.Result.Limit)
}
