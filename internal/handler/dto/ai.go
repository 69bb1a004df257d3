package dto

// PromptRequest is the body of POST /api/ai/complete.
type PromptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// CreateSessionRequest is the body of POST /api/ai/sessions.
type CreateSessionRequest struct {
	Context string `json:"context" validate:"required"`
	Prompt  string `json:"prompt" validate:"required"`
}

// InteractRequest is the body of POST /api/ai/sessions/{id}/interact.
type InteractRequest struct {
	Message string `json:"message" validate:"required"`
}

// FeedbackRequest is the body of POST /api/ai/feedback.
// The rating range is checked by the service.
type FeedbackRequest struct {
	InteractionID string `json:"interactionId" validate:"required"`
	Rating        int    `json:"rating"`
	Comments      string `json:"comments"`
}

// RecommendationUpdateRequest is the body of PUT /api/ai/recommendations/{id}.
type RecommendationUpdateRequest struct {
	Viewed    *bool `json:"viewed"`
	ActedUpon *bool `json:"actedUpon"`
}

// ReportRequest is the body of POST /api/ai/generate-report.
type ReportRequest struct {
	ReportType string         `json:"reportType" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}
