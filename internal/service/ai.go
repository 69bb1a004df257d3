package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/commandgrid/pmt/internal/assistant"
	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

const (
	analysisConfidence = 0.8
	reportConfidence   = 0.9
	sampleLifetime     = 30 * 24 * time.Hour
)

var analyticsRanges = map[string]time.Duration{
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
	"year":  365 * 24 * time.Hour,
}

// AIService runs the keyword assistant and tracks its usage per user.
type AIService struct {
	repo      *repository.Repository
	responder *assistant.Responder
	model     string
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewAIService creates a new AIService.
func NewAIService(repo *repository.Repository, responder *assistant.Responder, modelVersion string, recorder metrics.Recorder, logger *slog.Logger) *AIService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIService{
		repo:      repo,
		responder: responder,
		model:     modelVersion,
		metrics:   recorder,
		logger:    logger.With("component", "service.ai"),
		now:       time.Now,
	}
}

// TokenInfo reports tokens spent by a request and what remains today.
type TokenInfo struct {
	Used      int   `json:"used"`
	Remaining int64 `json:"remaining"`
}

// CompletionResult is a standalone completion.
type CompletionResult struct {
	Completion string          `json:"completion"`
	Usage      assistant.Usage `json:"usage"`
	TokenInfo  TokenInfo       `json:"tokenInfo"`
}

// SessionDetail is a session with its messages.
type SessionDetail struct {
	*model.AISession
	Messages []*model.AIInteraction `json:"messages"`
}

// InteractionResult is one exchange inside a session.
type InteractionResult struct {
	Session     *model.AISession     `json:"session,omitempty"`
	Interaction *model.AIInteraction `json:"interaction"`
	TokenInfo   TokenInfo            `json:"tokenInfo"`
}

// Usage returns the caller's consumption for today.
func (s *AIService) Usage(ctx context.Context, userID string) (assistant.UsageSummary, error) {
	tier, err := s.repo.GetUserTier(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return assistant.UsageSummary{}, ErrUserNotFound
		}
		return assistant.UsageSummary{}, fmt.Errorf("failed to get tier: %w", err)
	}
	usage, err := s.repo.GetAIUsage(ctx, userID, s.now())
	if err != nil {
		return assistant.UsageSummary{}, err
	}
	return assistant.Summarize(tier, usage.TokensUsed), nil
}

// Complete answers a prompt outside of any session.
func (s *AIService) Complete(ctx context.Context, userID, prompt string) (*CompletionResult, error) {
	if err := s.admit(ctx, userID); err != nil {
		return nil, err
	}

	c := s.responder.Complete(prompt)
	summary, err := s.record(ctx, userID, c.Usage)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{
		Completion: c.Text,
		Usage:      c.Usage,
		TokenInfo:  TokenInfo{Used: c.Usage.TotalTokens, Remaining: summary.TokensLeft},
	}, nil
}

// CreateSession opens a session and answers its first prompt in one transaction.
func (s *AIService) CreateSession(ctx context.Context, userID, sessionContext, prompt string) (*InteractionResult, error) {
	if err := s.admit(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &model.AISession{
		ID:        generateULID(),
		UserID:    userID,
		Context:   sessionContext,
		Status:    model.SessionActive,
		CreatedAt: now,
	}
	c := s.responder.Complete(prompt)
	interaction := s.interaction(session.ID, userID, prompt, c, now)

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateAISession(ctx, session); err != nil {
			return err
		}
		return tx.CreateAIInteraction(ctx, interaction)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.MessageCount = 1

	summary, err := s.record(ctx, userID, c.Usage)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ai_session_created", "session_id", session.ID, "rule", c.Rule)
	return &InteractionResult{
		Session:     session,
		Interaction: interaction,
		TokenInfo:   TokenInfo{Used: c.Usage.TotalTokens, Remaining: summary.TokensLeft},
	}, nil
}

// Sessions lists the caller's sessions.
func (s *AIService) Sessions(ctx context.Context, userID string) ([]*model.AISession, error) {
	sessions, err := s.repo.ListAISessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Session returns one of the caller's sessions with its messages.
func (s *AIService) Session(ctx context.Context, userID, id string) (*SessionDetail, error) {
	session, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.ListAIInteractions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	return &SessionDetail{AISession: session, Messages: messages}, nil
}

// CloseSession marks a session closed.
func (s *AIService) CloseSession(ctx context.Context, userID, id string) error {
	if err := s.repo.CloseAISession(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// Interact sends a message to an active session.
func (s *AIService) Interact(ctx context.Context, userID, sessionID, message string) (*InteractionResult, error) {
	session, err := s.session(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionActive {
		return nil, ErrSessionClosed
	}
	if err := s.admit(ctx, userID); err != nil {
		return nil, err
	}

	c := s.responder.Complete(message)
	interaction := s.interaction(sessionID, userID, message, c, s.now().UTC())
	if err := s.repo.CreateAIInteraction(ctx, interaction); err != nil {
		return nil, fmt.Errorf("failed to store interaction: %w", err)
	}

	summary, err := s.record(ctx, userID, c.Usage)
	if err != nil {
		return nil, err
	}
	return &InteractionResult{
		Interaction: interaction,
		TokenInfo:   TokenInfo{Used: c.Usage.TotalTokens, Remaining: summary.TokensLeft},
	}, nil
}

// Feedback rates one of the caller's interactions.
func (s *AIService) Feedback(ctx context.Context, userID, interactionID string, rating int, comments string) (*model.AIFeedback, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	ok, err := s.repo.AIInteractionExists(ctx, userID, interactionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInteractionNotFound
	}

	f := &model.AIFeedback{
		ID:            generateULID(),
		InteractionID: interactionID,
		UserID:        userID,
		Rating:        rating,
		Comments:      comments,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateAIFeedback(ctx, f); err != nil {
		if errors.Is(err, repository.ErrInteractionNotFound) {
			return nil, ErrInteractionNotFound
		}
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}
	return f, nil
}

// AnalyzeTask scores a company task and stores the result as a recommendation.
func (s *AIService) AnalyzeTask(ctx context.Context, ac *model.AuthContext, taskID string) (*assistant.TaskAnalysis, error) {
	task, err := s.repo.GetTask(ctx, ac.CompanyID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	comments, err := s.repo.CountTaskComments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	analysis := assistant.AnalyzeTask(task, comments, s.now())
	s.recommend(ctx, ac.UserID, model.RecommendationTaskAnalysis, analysis, analysisConfidence, nil)
	return &analysis, nil
}

// Recommendations lists the caller's recommendations, seeding samples for new users.
func (s *AIService) Recommendations(ctx context.Context, userID string) ([]*model.AIRecommendation, error) {
	recs, err := s.repo.ListRecommendations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	if len(recs) > 0 {
		return recs, nil
	}

	expires := s.now().UTC().Add(sampleLifetime)
	for _, sample := range s.responder.Samples() {
		content := map[string]string{"entity": sample.Entity, "message": sample.Content}
		s.recommend(ctx, userID, sample.Type, content, sample.Confidence, &expires)
	}
	recs, err = s.repo.ListRecommendations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return recs, nil
}

// UpdateRecommendation sets the viewed and acted-upon flags.
func (s *AIService) UpdateRecommendation(ctx context.Context, userID, id string, viewed, actedUpon *bool) (*model.AIRecommendation, error) {
	if viewed == nil && actedUpon == nil {
		return nil, ErrNothingToUpdate
	}
	rec, err := s.repo.UpdateRecommendationFlags(ctx, userID, id, viewed, actedUpon)
	if err != nil {
		if errors.Is(err, repository.ErrRecommendationNotFound) {
			return nil, ErrRecommendationNotFound
		}
		return nil, fmt.Errorf("failed to update recommendation: %w", err)
	}
	return rec, nil
}

// Analytics summarizes assistant activity.
type Analytics struct {
	TimeRange         string               `json:"timeRange"`
	TotalInteractions int                  `json:"totalInteractions"`
	TotalSessions     int                  `json:"totalSessions"`
	AverageRating     float64              `json:"averageRating"`
	TotalTokens       int64                `json:"totalTokens"`
	Recommendations   RecommendationStats  `json:"recommendations"`
	Trend             []model.AIDailyTrend `json:"trend"`
}

// RecommendationStats reports how many recommendations were acted upon.
type RecommendationStats struct {
	Total          int     `json:"total"`
	ActedUpon      int     `json:"actedUpon"`
	ConversionRate float64 `json:"conversionRate"`
}

// Analytics aggregates the caller's activity over week, month or year.
func (s *AIService) Analytics(ctx context.Context, userID, timeRange string) (*Analytics, error) {
	if timeRange == "" {
		timeRange = "week"
	}
	window, ok := analyticsRanges[timeRange]
	if !ok {
		return nil, ErrInvalidTimeRange
	}

	a, err := s.repo.GetAIAnalytics(ctx, userID, s.now().UTC().Add(-window))
	if err != nil {
		return nil, err
	}
	return &Analytics{
		TimeRange:         timeRange,
		TotalInteractions: a.Interactions,
		TotalSessions:     a.Sessions,
		AverageRating:     round2(a.AverageRating),
		TotalTokens:       a.Tokens,
		Recommendations: RecommendationStats{
			Total:          a.Recommendations,
			ActedUpon:      a.ActedOnRecommendation,
			ConversionRate: completion(a.ActedOnRecommendation, a.Recommendations),
		},
		Trend: a.Trend,
	}, nil
}

// GenerateReport builds report content and stores it as a recommendation.
func (s *AIService) GenerateReport(ctx context.Context, userID, reportType string, params map[string]any) (*assistant.Report, error) {
	if reportType == "" {
		reportType = assistant.ReportGeneral
	}
	report := assistant.GenerateReport(reportType, params, s.now())
	s.recommend(ctx, userID, model.RecommendationReportContent, report, reportConfidence, nil)
	return &report, nil
}

// admit enforces the per-minute request limit and the daily token budget.
// A failing rate-limit lookup lets the request through.
func (s *AIService) admit(ctx context.Context, userID string) error {
	tier, err := s.repo.GetUserTier(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get tier: %w", err)
	}

	now := s.now()
	current, err := s.repo.CountRecentInteractions(ctx, userID, now.Add(-time.Minute))
	if err != nil {
		s.logger.Warn("ai_rate_check_failed", "user_id", userID, "error", err)
	} else if result := assistant.CheckRate(tier, current, now); result.Limited {
		s.metrics.IncAIRateLimited()
		return &RateLimitError{Result: result}
	}

	usage, err := s.repo.GetAIUsage(ctx, userID, now)
	if err != nil {
		return err
	}
	if assistant.Summarize(tier, usage.TokensUsed).Exhausted() {
		s.metrics.IncAIRateLimited()
		return ErrTokenLimit
	}
	return nil
}

// record adds usage to today's counters and returns the updated summary.
func (s *AIService) record(ctx context.Context, userID string, u assistant.Usage) (assistant.UsageSummary, error) {
	if err := s.repo.AddAIUsage(ctx, userID, s.now(), int64(u.TotalTokens), 1, u.ProcessingTimeMS); err != nil {
		return assistant.UsageSummary{}, err
	}
	s.metrics.IncAICompletion()
	s.metrics.AddAITokens(int64(u.TotalTokens))
	return s.Usage(ctx, userID)
}

func (s *AIService) interaction(sessionID, userID, prompt string, c assistant.Completion, now time.Time) *model.AIInteraction {
	return &model.AIInteraction{
		ID:         generateULID(),
		SessionID:  sessionID,
		UserID:     userID,
		Prompt:     prompt,
		Response:   c.Text,
		TokensUsed: c.Usage.TotalTokens,
		Model:      s.model,
		CreatedAt:  now,
	}
}

// recommend stores a recommendation, logging failures.
func (s *AIService) recommend(ctx context.Context, userID, recType string, content any, confidence float64, expires *time.Time) {
	rec := &model.AIRecommendation{
		ID:              generateULID(),
		UserID:          userID,
		Type:            recType,
		Content:         model.MustJSON(content),
		ConfidenceScore: confidence,
		ExpiresAt:       expires,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.CreateRecommendation(ctx, rec); err != nil {
		s.logger.Warn("ai_recommendation_store_failed", "type", recType, "error", err)
	}
}

func (s *AIService) session(ctx context.Context, userID, id string) (*model.AISession, error) {
	session, err := s.repo.GetAISession(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
