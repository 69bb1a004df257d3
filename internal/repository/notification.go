package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for notification repository operations.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrPreferencesNotFound  = errors.New("notification preferences not found")
)

const notificationColumns = `id, user_id, type, title, message, priority, channel, delivery_status, metadata,
	is_read, read_at, attempt_count, max_attempts, next_attempt_at, last_error, sent_at, created_at`

// CreateNotification inserts a notification. Email notifications are picked up by the delivery worker.
func (r *Repository) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, priority, channel, delivery_status,
			metadata, max_attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Priority, n.Channel, n.DeliveryStatus,
		n.Metadata.String(), n.MaxAttempts, n.NextAttemptAt, n.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetNotification retrieves one of the user's notifications.
func (r *Repository) GetNotification(ctx context.Context, userID, id string) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 AND user_id = $2`

	n, err := scanNotification(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	limit = clampLimit(limit, 20, 100)

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnreadNotifications counts the user's unread notifications.
func (r *Repository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks a notification read.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification read and returns how many changed.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND NOT is_read`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteNotification removes one notification.
func (r *Repository) DeleteNotification(ctx context.Context, userID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteAllNotifications removes all of the user's notifications and returns the count.
func (r *Repository) DeleteAllNotifications(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountPendingEmails returns the delivery queue depth.
func (r *Repository) CountPendingEmails(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE channel = 'email' AND delivery_status IN ('pending', 'failed')`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending emails: %w", err)
	}
	return n, nil
}

// GetNotificationPreferences returns stored preferences.
func (r *Repository) GetNotificationPreferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	query := `
		SELECT user_id, enable_email, enable_push, enable_sms, min_priority_level, muted_types, updated_at
		FROM notification_preferences WHERE user_id = $1
	`

	var p model.NotificationPreferences
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.EnableEmail, &p.EnablePush, &p.EnableSMS, &p.MinPriorityLevel, &p.MutedTypes, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	if p.MutedTypes == nil {
		p.MutedTypes = []string{}
	}
	return &p, nil
}

// UpsertNotificationPreferences stores preferences and sets UpdatedAt.
func (r *Repository) UpsertNotificationPreferences(ctx context.Context, p *model.NotificationPreferences) error {
	query := `
		INSERT INTO notification_preferences (user_id, enable_email, enable_push, enable_sms, min_priority_level, muted_types, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			enable_email = EXCLUDED.enable_email,
			enable_push = EXCLUDED.enable_push,
			enable_sms = EXCLUDED.enable_sms,
			min_priority_level = EXCLUDED.min_priority_level,
			muted_types = EXCLUDED.muted_types,
			updated_at = NOW()
		RETURNING updated_at
	`

	muted := p.MutedTypes
	if muted == nil {
		muted = []string{}
	}
	err := r.db.QueryRow(ctx, query,
		p.UserID, p.EnableEmail, p.EnablePush, p.EnableSMS, p.MinPriorityLevel, muted,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save notification preferences: %w", err)
	}
	return nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var (
		n        model.Notification
		metadata []byte
	)
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.Priority,
		&n.Channel,
		&n.DeliveryStatus,
		&metadata,
		&n.IsRead,
		&n.ReadAt,
		&n.AttemptCount,
		&n.MaxAttempts,
		&n.NextAttemptAt,
		&n.LastError,
		&n.SentAt,
		&n.CreatedAt,
	)
	n.Metadata = metadata
	return &n, err
}
