package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Rule
		wantErr bool
	}{
		{"daily", "FREQ=DAILY", Rule{Freq: Daily, Interval: 1}, false},
		{"prefix and case", "RRULE:freq=weekly;interval=2", Rule{Freq: Weekly, Interval: 2}, false},
		{"count", "FREQ=MONTHLY;COUNT=3", Rule{Freq: Monthly, Interval: 1, Count: 3}, false},
		{"until date", "FREQ=YEARLY;UNTIL=20270101", Rule{Freq: Yearly, Interval: 1, Until: time.Date(2027, 1, 1, 23, 59, 59, 0, time.UTC)}, false},
		{"until time", "FREQ=DAILY;UNTIL=20260601T090000Z", Rule{Freq: Daily, Interval: 1, Until: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}, false},
		{"empty", "", Rule{}, true},
		{"no freq", "COUNT=2", Rule{}, true},
		{"hourly", "FREQ=HOURLY", Rule{}, true},
		{"byday", "FREQ=WEEKLY;BYDAY=MO", Rule{}, true},
		{"zero interval", "FREQ=DAILY;INTERVAL=0", Rule{}, true},
		{"count and until", "FREQ=DAILY;COUNT=2;UNTIL=20270101", Rule{}, true},
		{"malformed", "FREQ", Rule{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRule(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_String(t *testing.T) {
	rule, err := ParseRule("RRULE:freq=weekly;interval=2;count=4")
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=2;COUNT=4", rule.String())

	again, err := ParseRule(rule.String())
	require.NoError(t, err)
	assert.Equal(t, rule, again)
}

func TestRule_BetweenWeekly(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rule := Rule{Freq: Weekly, Interval: 1}

	got := rule.Between(start, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []time.Time{
		time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 23, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC),
	}, got)
}

func TestRule_BetweenCountIncludesEarlierOccurrences(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rule := Rule{Freq: Daily, Interval: 1, Count: 5}

	// Jan 1-5 exist; only Jan 4 and 5 fall in the window.
	got := rule.Between(start, time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []time.Time{
		time.Date(2026, 1, 4, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
	}, got)
}

func TestRule_BetweenMonthlySkipsMissingDays(t *testing.T) {
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	rule := Rule{Freq: Monthly, Interval: 1, Count: 3}

	got := rule.Between(start, start, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []time.Time{
		time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 31, 10, 0, 0, 0, time.UTC),
	}, got)
}

func TestRule_BetweenUntil(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rule := Rule{Freq: Daily, Interval: 2, Until: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)}

	got := rule.Between(start, start, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []time.Time{
		time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 3, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
	}, got)
}

func TestRule_BetweenCapsOccurrences(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := Rule{Freq: Daily, Interval: 1}

	got := rule.Between(start, start, start.AddDate(10, 0, 0))
	assert.Len(t, got, maxOccurrences)
}
