// Package calendar expands recurring events and renders iCalendar exports.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Supported recurrence frequencies.
const (
	Daily   = "DAILY"
	Weekly  = "WEEKLY"
	Monthly = "MONTHLY"
	Yearly  = "YEARLY"
)

// ErrInvalidRule is returned for malformed or unsupported recurrence rules.
var ErrInvalidRule = errors.New("invalid recurrence rule")

const (
	// maxOccurrences bounds the instances returned for one series.
	maxOccurrences = 1000
	// maxSteps bounds how far a series is walked looking for the window.
	maxSteps = 50000
)

var untilLayouts = []string{"20060102T150405Z", "20060102"}

// Rule is the subset of an RFC 5545 RRULE the calendar stores:
// FREQ with optional INTERVAL and one of COUNT or UNTIL.
type Rule struct {
	Freq     string
	Interval int
	Count    int
	Until    time.Time
}

// ParseRule parses "FREQ=WEEKLY;INTERVAL=2;COUNT=10", with or without an
// "RRULE:" prefix.
func ParseRule(s string) (Rule, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	if s == "" {
		return Rule{}, fmt.Errorf("%w: empty", ErrInvalidRule)
	}

	rule := Rule{Interval: 1}
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok || value == "" {
			return Rule{}, fmt.Errorf("%w: malformed part %q", ErrInvalidRule, part)
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			switch freq := strings.ToUpper(value); freq {
			case Daily, Weekly, Monthly, Yearly:
				rule.Freq = freq
			default:
				return Rule{}, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidRule, value)
			}
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("%w: interval must be a positive integer", ErrInvalidRule)
			}
			rule.Interval = n
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("%w: count must be a positive integer", ErrInvalidRule)
			}
			rule.Count = n
		case "UNTIL":
			until, err := parseUntil(value)
			if err != nil {
				return Rule{}, err
			}
			rule.Until = until
		default:
			return Rule{}, fmt.Errorf("%w: unsupported part %q", ErrInvalidRule, key)
		}
	}

	if rule.Freq == "" {
		return Rule{}, fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	}
	if rule.Count > 0 && !rule.Until.IsZero() {
		return Rule{}, fmt.Errorf("%w: COUNT and UNTIL are exclusive", ErrInvalidRule)
	}
	return rule, nil
}

func parseUntil(value string) (time.Time, error) {
	for _, layout := range untilLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			if layout == "20060102" {
				// A bare date includes the whole day.
				t = t.Add(24*time.Hour - time.Second)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid UNTIL %q", ErrInvalidRule, value)
}

// String renders the rule in canonical RRULE form without the prefix.
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString("FREQ=" + r.Freq)
	if r.Interval > 1 {
		b.WriteString(";INTERVAL=" + strconv.Itoa(r.Interval))
	}
	if r.Count > 0 {
		b.WriteString(";COUNT=" + strconv.Itoa(r.Count))
	}
	if !r.Until.IsZero() {
		b.WriteString(";UNTIL=" + r.Until.UTC().Format(untilLayouts[0]))
	}
	return b.String()
}

// Between returns the start times of the series beginning at dtstart that
// fall within [from, to]. Dates that do not exist in a period (Feb 30) are
// skipped and do not count toward COUNT.
func (r Rule) Between(dtstart, from, to time.Time) []time.Time {
	var out []time.Time
	seen := 0
	for n := 0; n < maxSteps; n++ {
		t, ok := r.nth(dtstart, n)
		if !ok {
			continue
		}
		if t.After(to) || (!r.Until.IsZero() && t.After(r.Until)) {
			break
		}
		seen++
		if r.Count > 0 && seen > r.Count {
			break
		}
		if t.Before(from) {
			continue
		}
		out = append(out, t)
		if len(out) == maxOccurrences {
			break
		}
	}
	return out
}

func (r Rule) nth(dtstart time.Time, n int) (time.Time, bool) {
	step := n * r.Interval
	switch r.Freq {
	case Daily:
		return dtstart.AddDate(0, 0, step), true
	case Weekly:
		return dtstart.AddDate(0, 0, 7*step), true
	case Monthly:
		t := dtstart.AddDate(0, step, 0)
		return t, t.Day() == dtstart.Day()
	case Yearly:
		t := dtstart.AddDate(step, 0, 0)
		return t, t.Day() == dtstart.Day() && t.Month() == dtstart.Month()
	}
	return time.Time{}, false
}
