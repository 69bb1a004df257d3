package model

import "time"

// Attendee response statuses.
const (
	AttendeePending  = "pending"
	AttendeeAccepted = "accepted"
	AttendeeDeclined = "declined"
)

// CalendarEvent is a company calendar entry. Recurring events are stored once
// and expanded into instances when listed.
type CalendarEvent struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"companyId"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StartsAt        time.Time       `json:"startsAt"`
	EndsAt          time.Time       `json:"endsAt"`
	AllDay          bool            `json:"allDay"`
	ProjectID       *string         `json:"projectId,omitempty"`
	Color           string          `json:"color,omitempty"`
	Location        string          `json:"location,omitempty"`
	RecurrenceRule  *string         `json:"recurrenceRule,omitempty"`
	ReminderMinutes []int32         `json:"reminders"`
	CreatedBy       string          `json:"createdBy"`
	CreatorName     string          `json:"createdByName"`
	CreatorEmail    string          `json:"-"`
	Attendees       []EventAttendee `json:"attendees"`
	CreatedAt       time.Time       `json:"createdAt"`

	// Set on expanded instances of a recurring event.
	RecurringInstance bool    `json:"isRecurringInstance,omitempty"`
	ParentEventID     *string `json:"parentEventId,omitempty"`
}

// Duration is the length of one occurrence.
func (e *CalendarEvent) Duration() time.Duration {
	return e.EndsAt.Sub(e.StartsAt)
}

// EventAttendee is an invited company user.
type EventAttendee struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Status string `json:"status"`
}
