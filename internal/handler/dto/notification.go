package dto

import "github.com/commandgrid/pmt/internal/model"

// CreateNotificationRequest is the body of POST /api/notifications.
type CreateNotificationRequest struct {
	UserID   string        `json:"userId"`
	Type     string        `json:"type" validate:"required"`
	Title    string        `json:"title" validate:"required,max=200"`
	Message  string        `json:"message" validate:"required"`
	Priority int           `json:"priority" validate:"omitempty,min=1,max=4"`
	Channel  string        `json:"channel"`
	Metadata model.RawJSON `json:"metadata"`
}

// PreferencesRequest is the body of PUT /api/notifications/preferences.
type PreferencesRequest struct {
	EnableEmail      *bool     `json:"enableEmail"`
	EnablePush       *bool     `json:"enablePush"`
	EnableSMS        *bool     `json:"enableSms"`
	MinPriorityLevel *int      `json:"minPriorityLevel"`
	MutedTypes       *[]string `json:"mutedTypes"`
}
