package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// ActivityRepository persists activity events consumed from the stream.
type ActivityRepository struct {
	repo *Repository
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(repo *Repository) *ActivityRepository {
	return &ActivityRepository{repo: repo}
}

// BulkInsert inserts events, skipping event IDs that were already stored.
func (r *ActivityRepository) BulkInsert(ctx context.Context, logs []*model.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO activity_logs (id, event_id, company_id, user_id, entity_type, entity_id, action, details, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`
	for _, l := range logs {
		batch.Queue(query, l.ID, l.EventID, l.CompanyID, l.UserID, l.EntityType, l.EntityID, l.Action, l.Details.String(), l.OccurredAt)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range logs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert activity %d: %w", i, err)
		}
	}
	return nil
}

type activityDayKey struct {
	companyID string
	day       time.Time
	action    string
}

// uniqueActivityDays returns the distinct (company, day, action) keys touched by logs.
func uniqueActivityDays(logs []*model.ActivityLog) []activityDayKey {
	seen := make(map[activityDayKey]struct{})
	for _, l := range logs {
		seen[activityDayKey{companyID: l.CompanyID, day: utcDay(l.OccurredAt), action: l.Action}] = struct{}{}
	}

	keys := make([]activityDayKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].day.Equal(keys[j].day) {
			return keys[i].day.Before(keys[j].day)
		}
		if keys[i].companyID != keys[j].companyID {
			return keys[i].companyID < keys[j].companyID
		}
		return keys[i].action < keys[j].action
	})
	return keys
}

// UpdateDailyStats recounts activity_daily_stats for every day touched by logs.
// Counts are recomputed from activity_logs so replayed batches stay exact.
func (r *ActivityRepository) UpdateDailyStats(ctx context.Context, logs []*model.ActivityLog) error {
	query := `
		INSERT INTO activity_daily_stats (company_id, day, action, count)
		SELECT $1::text, $2::date, $3::text, COUNT(*)
		FROM activity_logs
		WHERE company_id = $1 AND action = $3 AND occurred_at >= $4 AND occurred_at < $5
		ON CONFLICT (company_id, day, action) DO UPDATE SET count = EXCLUDED.count
	`

	for _, key := range uniqueActivityDays(logs) {
		if _, err := r.repo.pool.Exec(ctx, query, key.companyID, key.day, key.action, key.day, key.day.Add(24*time.Hour)); err != nil {
			return fmt.Errorf("upsert daily stat %s:%s: %w", key.companyID, key.day.Format("2006-01-02"), err)
		}
	}
	return nil
}

// ListActivity returns a company's recent activity, newest first.
func (r *Repository) ListActivity(ctx context.Context, companyID string, limit int) ([]*model.ActivityLog, error) {
	limit = clampLimit(limit, 50, 200)

	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.company_id, a.user_id, COALESCE(u.name, ''), a.entity_type, a.entity_id, a.action,
			a.details, a.occurred_at, a.created_at
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.company_id = $1
		ORDER BY a.occurred_at DESC, a.id DESC
		LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	items := []*model.ActivityLog{}
	for rows.Next() {
		var (
			a       model.ActivityLog
			details []byte
		)
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.UserID, &a.UserName, &a.EntityType, &a.EntityID,
			&a.Action, &details, &a.OccurredAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Details = details
		items = append(items, &a)
	}
	return items, rows.Err()
}
