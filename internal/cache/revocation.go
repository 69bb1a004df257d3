package cache

import (
	"context"
	"fmt"
	"time"
)

// revokedTokenPrefix is the Redis key prefix for revoked token IDs.
const revokedTokenPrefix = "auth:revoked:"

// RevokeToken records a token ID as revoked until the token would have expired.
// Tokens already past expiry are ignored.
func (c *Cache) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := revocationTTL(expiresAt, time.Now())
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether the token ID was revoked.
func (c *Cache) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// revocationTTL returns how long a revocation must be kept, rounded up to whole seconds.
func revocationTTL(expiresAt, now time.Time) time.Duration {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return remaining.Truncate(time.Second) + time.Second
}
