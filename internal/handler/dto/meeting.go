package dto

// CreateMeetingRequest is the body of POST /api/meetings.
type CreateMeetingRequest struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	DurationMinutes int      `json:"durationMinutes" validate:"omitempty,min=1,max=1440"`
	Context         string   `json:"context"`
	ProjectID       string   `json:"projectId"`
	ParticipantIDs  []string `json:"participantIds" validate:"omitempty,dive,required"`
}

// UpdateMeetingRequest is the body of PUT /api/meetings/{id}.
type UpdateMeetingRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,min=1,max=1440"`
	Context         *string `json:"context"`
}

// AddParticipantsRequest is the body of POST /api/meetings/{id}/participants.
type AddParticipantsRequest struct {
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1,dive,required"`
}

// VideoTokenRequest is the body of POST /api/meetings/{id}/video-token.
type VideoTokenRequest struct {
	ChannelName string `json:"channelName" validate:"required"`
	UID         string `json:"uid" validate:"required"`
}
