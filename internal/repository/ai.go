package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for assistant repository operations.
var (
	ErrSessionNotFound        = errors.New("ai session not found")
	ErrInteractionNotFound    = errors.New("ai interaction not found")
	ErrRecommendationNotFound = errors.New("ai recommendation not found")
)

// AIAnalytics aggregates a user's assistant usage over a window.
type AIAnalytics struct {
	Interactions          int
	Sessions              int
	AverageRating         float64
	Tokens                int64
	Recommendations       int
	ActedOnRecommendation int
	Trend                 []model.AIDailyTrend
}

const sessionSelect = `
	SELECT s.id, s.user_id, s.context, s.status,
		(SELECT COUNT(*) FROM ai_interactions i WHERE i.session_id = s.id) AS message_count,
		s.created_at, s.closed_at
	FROM ai_sessions s
`

// CreateAISession inserts a session.
func (r *Repository) CreateAISession(ctx context.Context, s *model.AISession) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ai_sessions (id, user_id, context, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.Context, s.Status, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ai session: %w", err)
	}
	return nil
}

// GetAISession retrieves one of the user's sessions.
func (r *Repository) GetAISession(ctx context.Context, userID, id string) (*model.AISession, error) {
	s, err := scanSession(r.db.QueryRow(ctx, sessionSelect+` WHERE s.id = $1 AND s.user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get ai session: %w", err)
	}
	return s, nil
}

// ListAISessions returns the user's sessions, newest first.
func (r *Repository) ListAISessions(ctx context.Context, userID string) ([]*model.AISession, error) {
	rows, err := r.db.Query(ctx, sessionSelect+` WHERE s.user_id = $1 ORDER BY s.created_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.AISession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ai session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CloseAISession marks a session closed.
func (r *Repository) CloseAISession(ctx context.Context, userID, id string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE ai_sessions SET status = 'closed', closed_at = COALESCE(closed_at, NOW()) WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to close ai session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CreateAIInteraction inserts a prompt/response pair.
func (r *Repository) CreateAIInteraction(ctx context.Context, i *model.AIInteraction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ai_interactions (id, session_id, user_id, prompt, response, tokens_used, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.ID, i.SessionID, i.UserID, i.Prompt, i.Response, i.TokensUsed, i.Model, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ai interaction: %w", err)
	}
	return nil
}

// ListAIInteractions returns a session's interactions, oldest first.
func (r *Repository) ListAIInteractions(ctx context.Context, sessionID string) ([]*model.AIInteraction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, user_id, prompt, response, tokens_used, model, created_at
		FROM ai_interactions WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai interactions: %w", err)
	}
	defer rows.Close()

	items := []*model.AIInteraction{}
	for rows.Next() {
		var i model.AIInteraction
		if err := rows.Scan(&i.ID, &i.SessionID, &i.UserID, &i.Prompt, &i.Response, &i.TokensUsed, &i.Model, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ai interaction: %w", err)
		}
		items = append(items, &i)
	}
	return items, rows.Err()
}

// AIInteractionExists reports whether the interaction belongs to the user.
func (r *Repository) AIInteractionExists(ctx context.Context, userID, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ai_interactions WHERE id = $1 AND user_id = $2)`, id, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ai interaction: %w", err)
	}
	return exists, nil
}

// CountRecentInteractions counts the user's interactions created at or after since.
func (r *Repository) CountRecentInteractions(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ai_interactions WHERE user_id = $1 AND created_at >= $2`, userID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ai interactions: %w", err)
	}
	return n, nil
}

// CreateAIFeedback stores a rating.
func (r *Repository) CreateAIFeedback(ctx context.Context, f *model.AIFeedback) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ai_feedback (id, interaction_id, user_id, rating, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.InteractionID, f.UserID, f.Rating, f.Comments, f.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInteractionNotFound
		}
		return fmt.Errorf("failed to create ai feedback: %w", err)
	}
	return nil
}

// CreateRecommendation stores a recommendation.
func (r *Repository) CreateRecommendation(ctx context.Context, rec *model.AIRecommendation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ai_recommendations (id, user_id, type, content, confidence_score, expires_at, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)`,
		rec.ID, rec.UserID, rec.Type, rec.Content.String(), rec.ConfidenceScore, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ai recommendation: %w", err)
	}
	return nil
}

// ListRecommendations returns the user's unexpired recommendations, newest first.
func (r *Repository) ListRecommendations(ctx context.Context, userID string) ([]*model.AIRecommendation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, content, confidence_score, is_viewed, is_acted_upon, expires_at, created_at
		FROM ai_recommendations
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai recommendations: %w", err)
	}
	defer rows.Close()

	recs := []*model.AIRecommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ai recommendation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpdateRecommendationFlags sets the viewed and acted-upon flags that are non-nil.
func (r *Repository) UpdateRecommendationFlags(ctx context.Context, userID, id string, viewed, actedUpon *bool) (*model.AIRecommendation, error) {
	query := `
		UPDATE ai_recommendations
		SET is_viewed = COALESCE($3, is_viewed), is_acted_upon = COALESCE($4, is_acted_upon)
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, type, content, confidence_score, is_viewed, is_acted_upon, expires_at, created_at
	`

	rec, err := scanRecommendation(r.db.QueryRow(ctx, query, id, userID, viewed, actedUpon))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecommendationNotFound
		}
		return nil, fmt.Errorf("failed to update ai recommendation: %w", err)
	}
	return rec, nil
}

// AddAIUsage accumulates usage on the user's row for day.
func (r *Repository) AddAIUsage(ctx context.Context, userID string, day time.Time, tokens int64, requests int, durationMS int64) error {
	query := `
		INSERT INTO ai_usage_statistics (user_id, usage_date, tokens_used, requests_count, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, usage_date) DO UPDATE SET
			tokens_used = ai_usage_statistics.tokens_used + EXCLUDED.tokens_used,
			requests_count = ai_usage_statistics.requests_count + EXCLUDED.requests_count,
			duration_ms = ai_usage_statistics.duration_ms + EXCLUDED.duration_ms
	`

	if _, err := r.db.Exec(ctx, query, userID, utcDay(day), tokens, requests, durationMS); err != nil {
		return fmt.Errorf("failed to record ai usage: %w", err)
	}
	return nil
}

// GetAIUsage returns the user's usage for day, zero-valued when absent.
func (r *Repository) GetAIUsage(ctx context.Context, userID string, day time.Time) (*model.AIUsage, error) {
	usage := &model.AIUsage{UserID: userID, Date: utcDay(day)}
	err := r.db.QueryRow(ctx, `
		SELECT tokens_used, requests_count, duration_ms
		FROM ai_usage_statistics WHERE user_id = $1 AND usage_date = $2`,
		userID, utcDay(day),
	).Scan(&usage.TokensUsed, &usage.RequestsCount, &usage.DurationMS)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get ai usage: %w", err)
	}
	return usage, nil
}

// SumCompanyAITokens returns the tokens used by all company users on day.
func (r *Repository) SumCompanyAITokens(ctx context.Context, companyID string, day time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(s.tokens_used), 0)
		FROM ai_usage_statistics s
		JOIN users u ON u.id = s.user_id
		WHERE u.company_id = $1 AND s.usage_date = $2`,
		companyID, utcDay(day),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ai tokens: %w", err)
	}
	return total, nil
}

// GetAIAnalytics aggregates the user's assistant activity since the given time.
func (r *Repository) GetAIAnalytics(ctx context.Context, userID string, since time.Time) (*AIAnalytics, error) {
	var a AIAnalytics

	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ai_interactions WHERE user_id = $1 AND created_at >= $2),
			(SELECT COUNT(*) FROM ai_sessions WHERE user_id = $1 AND created_at >= $2),
			(SELECT COALESCE(AVG(rating), 0)::float8 FROM ai_feedback WHERE user_id = $1 AND created_at >= $2),
			(SELECT COALESCE(SUM(tokens_used), 0)::bigint FROM ai_interactions WHERE user_id = $1 AND created_at >= $2),
			(SELECT COUNT(*) FROM ai_recommendations WHERE user_id = $1 AND created_at >= $2),
			(SELECT COUNT(*) FROM ai_recommendations WHERE user_id = $1 AND created_at >= $2 AND is_acted_upon)
	`, userID, since).Scan(&a.Interactions, &a.Sessions, &a.AverageRating, &a.Tokens, &a.Recommendations, &a.ActedOnRecommendation)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ai analytics: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
			COUNT(*), COALESCE(SUM(tokens_used), 0)::bigint
		FROM ai_interactions
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai trend: %w", err)
	}
	defer rows.Close()

	a.Trend = []model.AIDailyTrend{}
	for rows.Next() {
		var p model.AIDailyTrend
		if err := rows.Scan(&p.Date, &p.Interactions, &p.Tokens); err != nil {
			return nil, fmt.Errorf("failed to scan ai trend: %w", err)
		}
		a.Trend = append(a.Trend, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ai trend: %w", err)
	}
	return &a, nil
}

func scanSession(row pgx.Row) (*model.AISession, error) {
	var s model.AISession
	err := row.Scan(&s.ID, &s.UserID, &s.Context, &s.Status, &s.MessageCount, &s.CreatedAt, &s.ClosedAt)
	return &s, err
}

func scanRecommendation(row pgx.Row) (*model.AIRecommendation, error) {
	var (
		rec     model.AIRecommendation
		content []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Type, &content, &rec.ConfidenceScore,
		&rec.IsViewed, &rec.IsActedUpon, &rec.ExpiresAt, &rec.CreatedAt)
	rec.Content = content
	return &rec, err
}
