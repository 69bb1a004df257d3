package model

import "time"

// Chat room types.
const (
	RoomGeneral = "general"
	RoomProject = "project"
	RoomTeam    = "team"
	RoomDirect  = "direct"
)

// Room member roles.
const (
	RoomRoleAdmin  = "admin"
	RoomRoleMember = "member"
)

// DefaultRoomID is the path alias resolving to the company's default room.
const DefaultRoomID = "default"

// DefaultRoomName is the name of the auto-created general room.
const DefaultRoomName = "General Chat"

// ChatRoom groups messages.
type ChatRoom struct {
	ID          string           `json:"id"`
	CompanyID   string           `json:"companyId"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	ProjectID   *string          `json:"projectId,omitempty"`
	TeamID      *string          `json:"teamId,omitempty"`
	IsPrivate   bool             `json:"isPrivate"`
	IsDefault   bool             `json:"isDefault"`
	CreatedBy   string           `json:"createdBy"`
	Members     []ChatRoomMember `json:"members"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// ChatRoomMember is a membership row.
type ChatRoomMember struct {
	RoomID   string    `json:"roomId,omitempty"`
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// HasMember reports whether userID belongs to the room.
func (r *ChatRoom) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberRole returns the role of userID, or "" when not a member.
func (r *ChatRoom) MemberRole(userID string) string {
	for _, m := range r.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

// ChatMessage is a message in a room.
type ChatMessage struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"roomId"`
	UserID     string     `json:"userId"`
	SenderName string     `json:"senderName"`
	Content    string     `json:"content"`
	IsBot      bool       `json:"isBot"`
	Metadata   RawJSON    `json:"metadata"`
	IsPinned   bool       `json:"isPinned"`
	PinnedAt   *time.Time `json:"pinnedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ChatReportRow is one message in a chat report.
type ChatReportRow struct {
	CreatedAt   time.Time
	SenderName  string
	RoomName    string
	ProjectName string
	Message     string
}
