package notify

import (
	"errors"
	"math/rand/v2"
	"time"
)

// DefaultMaxAttempts bounds delivery attempts for outbox rows that do not
// carry their own limit.
const DefaultMaxAttempts = 5

// retrySchedule is the backoff after the n-th failed send. Mail relays
// usually recover within minutes, so the early steps are short.
var retrySchedule = [...]time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	time.Hour,
	6 * time.Hour,
}

const retryJitter = 0.2

// NextRetryDelay returns the backoff after failure number attempt (0-based)
// with ±20% jitter so a burst of failures does not retry in lockstep.
func NextRetryDelay(attempt int) time.Duration {
	attempt = max(0, min(attempt, len(retrySchedule)-1))
	base := float64(retrySchedule[attempt])
	return time.Duration(base + (rand.Float64()*2-1)*base*retryJitter)
}

// NextRetryAt is now plus NextRetryDelay(attempt).
func NextRetryAt(attempt int, now time.Time) time.Time {
	return now.Add(NextRetryDelay(attempt))
}

// IsExhausted reports whether attempts has reached maxAttempts, using
// DefaultMaxAttempts when maxAttempts is not positive.
func IsExhausted(attempts, maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return attempts >= maxAttempts
}

// isPermanent reports failures that no retry can fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrNoRecipient) || errors.Is(err, ErrRender) || errors.Is(err, ErrRejected)
}
