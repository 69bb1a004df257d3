package dto

// CreateEventRequest is the body of POST /api/admin/calendar/events.
type CreateEventRequest struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description"`
	StartsAt       *Date    `json:"startsAt" validate:"required"`
	EndsAt         *Date    `json:"endsAt"`
	AllDay         bool     `json:"allDay"`
	ProjectID      string   `json:"projectId"`
	Color          string   `json:"color" validate:"omitempty,max=32"`
	Location       string   `json:"location" validate:"omitempty,max=200"`
	RecurrenceRule string   `json:"recurrenceRule" validate:"omitempty,max=200"`
	Attendees      []string `json:"attendees" validate:"omitempty,dive,required"`
	Reminders      []int    `json:"reminders"`
}
