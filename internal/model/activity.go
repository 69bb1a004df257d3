package model

import "time"

// ActivityLog is a persisted domain event.
type ActivityLog struct {
	ID         string    `json:"id"`
	EventID    string    `json:"-"`
	CompanyID  string    `json:"companyId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName,omitempty"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Action     string    `json:"action"`
	Details    RawJSON   `json:"details"`
	OccurredAt time.Time `json:"occurredAt"`
	CreatedAt  time.Time `json:"createdAt"`
}
