package model

import "time"

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliverySent      = "sent"
	DeliveryFailed    = "failed"
	DeliveryExhausted = "exhausted"
	DeliverySkipped   = "skipped"
)

// Notification types that map to email templates.
const (
	NotificationWelcome           = "welcome"
	NotificationTaskAssignment    = "task_assignment"
	NotificationDeadlineReminder  = "deadline_reminder"
	NotificationMeetingInvitation = "meeting_invitation"
	NotificationGeneric           = "generic"
)

// Priority bounds.
const (
	PriorityLevelMin     = 1
	PriorityLevelMax     = 4
	PriorityLevelDefault = 2
)

// Notification is a message to a user, optionally delivered by email.
type Notification struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Priority       int        `json:"priority"`
	Channel        string     `json:"channel"`
	DeliveryStatus string     `json:"deliveryStatus"`
	Metadata       RawJSON    `json:"metadata"`
	IsRead         bool       `json:"isRead"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	AttemptCount   int        `json:"attemptCount"`
	MaxAttempts    int        `json:"-"`
	NextAttemptAt  time.Time  `json:"-"`
	LastError      *string    `json:"-"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// NotificationPreferences controls delivery for a user.
type NotificationPreferences struct {
	UserID           string    `json:"userId"`
	EnableEmail      bool      `json:"enableEmail"`
	EnablePush       bool      `json:"enablePush"`
	EnableSMS        bool      `json:"enableSms"`
	MinPriorityLevel int       `json:"minPriorityLevel"`
	MutedTypes       []string  `json:"mutedTypes"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DefaultNotificationPreferences returns the preferences used when none are stored.
func DefaultNotificationPreferences(userID string) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:           userID,
		EnableEmail:      true,
		EnablePush:       true,
		EnableSMS:        false,
		MinPriorityLevel: PriorityLevelDefault,
		MutedTypes:       []string{},
	}
}

// AllowsEmail reports whether an email notification of the given type and priority
// should be sent.
func (p *NotificationPreferences) AllowsEmail(notificationType string, priority int) bool {
	if !p.EnableEmail || priority < p.MinPriorityLevel {
		return false
	}
	for _, muted := range p.MutedTypes {
		if muted == notificationType {
			return false
		}
	}
	return true
}
