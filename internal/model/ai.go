package model

import "time"

// Assistant tiers.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// Session statuses.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// Recommendation types produced by the assistant.
const (
	RecommendationTaskAnalysis  = "task_analysis"
	RecommendationReportContent = "report_content"
)

// AISession is a conversation with the assistant.
type AISession struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Context      string     `json:"context"`
	Status       string     `json:"status"`
	MessageCount int        `json:"messageCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
}

// AIInteraction is a prompt and its reply.
type AIInteraction struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	TokensUsed int       `json:"tokensUsed"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AIFeedback rates an interaction.
type AIFeedback struct {
	ID            string    `json:"id"`
	InteractionID string    `json:"interactionId"`
	UserID        string    `json:"userId"`
	Rating        int       `json:"rating"`
	Comments      string    `json:"comments"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AIRecommendation is a stored suggestion for a user.
type AIRecommendation struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Type            string     `json:"type"`
	Content         RawJSON    `json:"content"`
	ConfidenceScore float64    `json:"confidenceScore"`
	IsViewed        bool       `json:"isViewed"`
	IsActedUpon     bool       `json:"isActedUpon"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// AIUsage is a user's assistant consumption for one day.
type AIUsage struct {
	UserID        string    `json:"userId"`
	Date          time.Time `json:"date"`
	TokensUsed    int64     `json:"tokensUsed"`
	RequestsCount int       `json:"requestsCount"`
	DurationMS    int64     `json:"durationMs"`
}

// AIDailyTrend is one point of the analytics trend.
type AIDailyTrend struct {
	Date         string `json:"date"`
	Interactions int    `json:"interactions"`
	Tokens       int64  `json:"tokens"`
}
