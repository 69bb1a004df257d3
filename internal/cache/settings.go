package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commandgrid/pmt/internal/model"
)

const (
	settingsKeyPrefix = "settings:"

	// SettingsTTL bounds how long a cached settings document is served.
	SettingsTTL = 10 * time.Minute
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// GetSettings returns the cached settings document for a user.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetSettings(ctx context.Context, userID string) (model.RawJSON, error) {
	data, err := c.client.Get(ctx, settingsKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// SetSettings caches a settings document.
func (c *Cache) SetSettings(ctx context.Context, userID string, doc model.RawJSON) error {
	if err := c.client.Set(ctx, settingsKeyPrefix+userID, []byte(doc), SettingsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache settings: %w", err)
	}
	return nil
}

// DeleteSettings invalidates the cached settings document.
func (c *Cache) DeleteSettings(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, settingsKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate settings: %w", err)
	}
	return nil
}
