package model

import (
	"slices"
	"time"
)

// Meeting contexts.
const (
	MeetingContextCompany = "company"
	MeetingContextProject = "project"
	MeetingContextTeam    = "team"
)

// MeetingContexts lists valid meeting contexts.
var MeetingContexts = []string{MeetingContextCompany, MeetingContextProject, MeetingContextTeam}

// IsValidMeetingContext reports whether c is a known meeting context.
func IsValidMeetingContext(c string) bool {
	return slices.Contains(MeetingContexts, c)
}

// Participant roles.
const (
	ParticipantHost = "host"
	ParticipantUser = "participant"
)

// Meeting is a scheduled video call.
type Meeting struct {
	ID               string    `json:"id"`
	CompanyID        string    `json:"companyId"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	HostID           string    `json:"hostId"`
	HostName         string    `json:"hostName,omitempty"`
	StartsAt         time.Time `json:"startsAt"`
	DurationMinutes  int       `json:"durationMinutes"`
	Context          string    `json:"context"`
	ProjectID        *string   `json:"projectId,omitempty"`
	ChannelName      string    `json:"channelName"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// EndsAt returns the scheduled end of the meeting.
func (m *Meeting) EndsAt() time.Time {
	return m.StartsAt.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// MeetingParticipant is a user invited to or present in a meeting.
type MeetingParticipant struct {
	MeetingID string    `json:"meetingId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// VideoToken grants access to a meeting's media channel.
type VideoToken struct {
	Token       string    `json:"token"`
	AppID       string    `json:"appId"`
	ChannelName string    `json:"channelName"`
	UID         string    `json:"uid"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
