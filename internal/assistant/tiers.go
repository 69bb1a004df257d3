package assistant

import (
	"math"
	"time"

	"github.com/commandgrid/pmt/internal/model"
)

// TierLimits bounds assistant usage for a subscription tier.
type TierLimits struct {
	TokensPerDay      int64
	RequestsPerMinute int
}

var tierLimits = map[string]TierLimits{
	model.TierFree:       {TokensPerDay: 10_000, RequestsPerMinute: 10},
	model.TierBasic:      {TokensPerDay: 100_000, RequestsPerMinute: 30},
	model.TierPremium:    {TokensPerDay: 500_000, RequestsPerMinute: 60},
	model.TierEnterprise: {TokensPerDay: 2_000_000, RequestsPerMinute: 120},
}

// NormalizeTier maps unknown or empty tiers to free.
func NormalizeTier(tier string) string {
	if _, ok := tierLimits[tier]; ok {
		return tier
	}
	return model.TierFree
}

// LimitsFor returns the limits of tier.
func LimitsFor(tier string) TierLimits {
	return tierLimits[NormalizeTier(tier)]
}

// RateLimitResult is the outcome of a per-minute request check.
type RateLimitResult struct {
	Limited        bool `json:"-"`
	Limit          int  `json:"limit"`
	Current        int  `json:"current"`
	ResetInSeconds int  `json:"resetInSeconds"`
}

// CheckRate compares the requests made in the current minute with the tier limit.
func CheckRate(tier string, current int, now time.Time) RateLimitResult {
	limit := LimitsFor(tier).RequestsPerMinute
	return RateLimitResult{
		Limited:        current >= limit,
		Limit:          limit,
		Current:        current,
		ResetInSeconds: ResetInSeconds(now),
	}
}

// ResetInSeconds is the time until the next minute boundary.
func ResetInSeconds(now time.Time) int {
	return 60 - int(now.Unix()%60)
}

// UsageSummary reports daily token consumption against the tier limit.
type UsageSummary struct {
	Tier       string  `json:"tier"`
	TierLimit  int64   `json:"tierLimit"`
	TokensUsed int64   `json:"tokensUsed"`
	TokensLeft int64   `json:"tokensLeft"`
	Percentage float64 `json:"percentage"`
}

// Summarize builds the usage summary for tier given tokens spent today.
func Summarize(tier string, used int64) UsageSummary {
	tier = NormalizeTier(tier)
	limit := tierLimits[tier].TokensPerDay
	left := limit - used
	if left < 0 {
		left = 0
	}
	pct := float64(used) / float64(limit) * 100
	if pct > 100 {
		pct = 100
	}
	return UsageSummary{
		Tier:       tier,
		TierLimit:  limit,
		TokensUsed: used,
		TokensLeft: left,
		Percentage: math.Round(pct*100) / 100,
	}
}

// Exhausted reports whether the daily token budget is spent.
func (u UsageSummary) Exhausted() bool {
	return u.TokensLeft <= 0
}
