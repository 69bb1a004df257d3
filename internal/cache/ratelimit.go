package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitUserPrefix = "ratelimit:user:"
	rateLimitIPPrefix   = "ratelimit:ip:"
)

// RateLimitResult is the outcome of one token bucket check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucket describes a token bucket: perSecond tokens are added continuously up
// to burst, and idle buckets expire after ttl.
type bucket struct {
	key       string
	perSecond float64
	burst     int
	ttl       time.Duration
}

// tokenBucketScript refills and consumes a bucket atomically. Time is in
// milliseconds so sub-second refill rates stay accurate.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1]) / 1000
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

tokens = math.min(burst, tokens + math.max(0, now - ts) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', key, ttl)

return {allowed, wait, math.floor(tokens)}
`)

// CheckUserRateLimit consumes one token from the caller's API bucket.
// A non-positive rate disables the limit.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now().Add(time.Minute)}, nil
	}
	return c.take(ctx, bucket{
		key:       rateLimitUserPrefix + userID,
		perSecond: float64(ratePerMinute) / 60,
		burst:     burst,
		ttl:       2 * time.Minute,
	})
}

// CheckIPRateLimit consumes one token from the bucket for ip within scope.
// The IP is hashed before it becomes part of a key.
func (c *Cache) CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now().Add(time.Second)}, nil
	}
	return c.take(ctx, bucket{
		key:       ipRateLimitKey(scope, ip),
		perSecond: float64(ratePerSecond),
		burst:     burst,
		ttl:       10 * time.Second,
	})
}

func (c *Cache) take(ctx context.Context, b bucket) (*RateLimitResult, error) {
	now := time.Now()
	res, err := tokenBucketScript.Run(ctx, c.client, []string{b.key},
		b.perSecond, b.burst, now.UnixMilli(), b.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", b.key, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", b.key, res)
	}

	remaining := res[2]
	refill := time.Duration(float64(int64(b.burst)-remaining) / b.perSecond * float64(time.Second))
	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  remaining,
		ResetAt:    now.Add(refill),
		RetryAfter: roundUpSecond(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// roundUpSecond keeps Retry-After a whole, non-zero number of seconds.
func roundUpSecond(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}

func ipRateLimitKey(scope, ip string) string {
	return rateLimitIPPrefix + scope + ":" + hashIP(ip)
}

// hashIP returns the first 8 bytes of the IP's SHA-256 as hex.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
