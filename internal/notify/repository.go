package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/commandgrid/pmt/internal/model"
)

// DefaultLease is how long a claimed delivery stays invisible to other workers.
const DefaultLease = 5 * time.Minute

// Delivery is a pending email notification joined with its recipient.
type Delivery struct {
	Notification   *model.Notification
	RecipientEmail string
	RecipientName  string
	Preferences    *model.NotificationPreferences
}

// Repository is the delivery outbox over the notifications table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new outbox repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ClaimPending leases up to limit due email notifications. Claimed rows have
// next_attempt_at pushed out by lease so concurrent workers skip them.
func (r *Repository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*Delivery, error) {
	if lease <= 0 {
		lease = DefaultLease
	}
	query := `
		WITH due AS (
			SELECT id
			FROM notifications
			WHERE channel = 'email'
			  AND delivery_status IN ('pending', 'failed')
			  AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notifications n
		SET next_attempt_at = NOW() + make_interval(secs => $2)
		FROM due, users u
		LEFT JOIN notification_preferences p ON p.user_id = u.id
		WHERE n.id = due.id AND u.id = n.user_id
		RETURNING n.id, n.user_id, n.type, n.title, n.message, n.priority, n.metadata,
			n.attempt_count, n.max_attempts, n.created_at,
			u.email, u.name,
			COALESCE(p.enable_email, TRUE), COALESCE(p.min_priority_level, 2),
			COALESCE(p.muted_types, '{}')
	`

	rows, err := r.db.QueryContext(ctx, query, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim pending notifications: %w", err)
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		var (
			n     model.Notification
			prefs model.NotificationPreferences
			meta  []byte
			muted []string
			d     Delivery
		)
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Priority, &meta,
			&n.AttemptCount, &n.MaxAttempts, &n.CreatedAt,
			&d.RecipientEmail, &d.RecipientName,
			&prefs.EnableEmail, &prefs.MinPriorityLevel, pq.Array(&muted),
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		n.Channel = model.ChannelEmail
		n.Metadata = meta
		prefs.UserID = n.UserID
		prefs.MutedTypes = muted

		d.Notification = &n
		d.Preferences = &prefs
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id string) error {
	query := `
		UPDATE notifications
		SET delivery_status = 'sent',
			attempt_count = attempt_count + 1,
			last_error = NULL,
			sent_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkSkipped records that preferences suppressed the email.
func (r *Repository) MarkSkipped(ctx context.Context, id, reason string) error {
	query := `UPDATE notifications SET delivery_status = 'skipped', last_error = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reason); err != nil {
		return fmt.Errorf("mark notification skipped: %w", err)
	}
	return nil
}

// MarkFailure records a failed attempt and schedules the next one.
func (r *Repository) MarkFailure(ctx context.Context, id, errMsg string, nextAttemptAt time.Time, exhausted bool) error {
	status := model.DeliveryFailed
	if exhausted {
		status = model.DeliveryExhausted
	}
	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}

	query := `
		UPDATE notifications
		SET delivery_status = $2,
			attempt_count = attempt_count + 1,
			last_error = $3,
			next_attempt_at = $4
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, status, errMsg, nextAttemptAt); err != nil {
		return fmt.Errorf("mark notification failure: %w", err)
	}
	return nil
}

// QueueDepth returns the count of email notifications awaiting delivery.
func (r *Repository) QueueDepth(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE channel = 'email' AND delivery_status IN ('pending', 'failed')
	`
	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queue depth: %w", err)
	}
	return count, nil
}
