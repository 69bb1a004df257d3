package dto

import "strings"

// CreateRoomRequest is the body of POST /api/chat/rooms.
type CreateRoomRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	ProjectID   string   `json:"projectId"`
	TeamID      string   `json:"teamId"`
	IsPrivate   bool     `json:"isPrivate"`
	MemberIDs   []string `json:"memberIds" validate:"omitempty,dive,required"`
}

// RoomMemberRequest is the body of POST /api/chat/rooms/{id}/members.
type RoomMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// SendMessageRequest is the body of POST /api/chat/rooms/{id}/messages.
// Older clients send the text as "message".
type SendMessageRequest struct {
	Content string `json:"content"`
	Message string `json:"message"`
}

// Text returns the message body, preferring content.
func (r SendMessageRequest) Text() string {
	if s := strings.TrimSpace(r.Content); s != "" {
		return s
	}
	return strings.TrimSpace(r.Message)
}

// ChatReportRequest is the body of POST /api/chat/report.
// Dates and format are checked by the service.
type ChatReportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Format    string `json:"format"`
}
