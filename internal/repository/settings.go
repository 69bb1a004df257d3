package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// ErrSettingsNotFound is returned when a user has no stored settings document.
var ErrSettingsNotFound = errors.New("settings not found")

// GetSettings returns the user's settings document.
func (r *Repository) GetSettings(ctx context.Context, userID string) (model.RawJSON, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT settings FROM user_settings WHERE user_id = $1`, userID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return doc, nil
}

// UpsertSettings stores the full settings document.
func (r *Repository) UpsertSettings(ctx context.Context, userID string, doc model.RawJSON) error {
	query := `
		INSERT INTO user_settings (user_id, settings, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (user_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, userID, doc.String()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
