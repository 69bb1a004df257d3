package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/commandgrid/pmt/internal/model"
)

func TestExport(t *testing.T) {
	rule := "FREQ=WEEKLY;COUNT=4"
	events := []*model.CalendarEvent{
		{
			ID:              "ev-1",
			Title:           "Sprint review; demo, retro",
			Description:     "Line one\nLine two",
			StartsAt:        time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC),
			EndsAt:          time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC),
			Location:        "Room 4",
			RecurrenceRule:  &rule,
			ReminderMinutes: []int32{15},
			CreatorName:     "Ann",
			CreatorEmail:    "ann@example.com",
		},
		{
			ID:       "ev-2",
			Title:    "Offsite",
			StartsAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			EndsAt:   time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
			AllDay:   true,
		},
	}

	out := string(Export(events, ExportOptions{
		Name:     "Project Calendar",
		EventURL: func(id string) string { return "https://app.example.com/calendar/event/" + id },
		Stamp:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}))

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "X-WR-CALNAME:Project Calendar\r\n")
	assert.Contains(t, out, "DTSTAMP:20260501T000000Z\r\n")
	assert.Contains(t, out, "DTSTART:20260504T140000Z\r\n")
	assert.Contains(t, out, `SUMMARY:Sprint review\; demo\, retro`+"\r\n")
	assert.Contains(t, out, `DESCRIPTION:Line one\nLine two`+"\r\n")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;COUNT=4\r\n")
	assert.Contains(t, out, "URL:https://app.example.com/calendar/event/ev-1\r\n")
	assert.Contains(t, out, "ORGANIZER;CN=\"Ann\":mailto:ann@example.com\r\n")
	assert.Contains(t, out, "TRIGGER:-PT15M\r\n")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20260601\r\n")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20260603\r\n")
}

func TestExport_FoldsLongLines(t *testing.T) {
	events := []*model.CalendarEvent{{
		ID:       "ev-1",
		Title:    strings.Repeat("é", 60),
		StartsAt: time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC),
	}}

	out := string(Export(events, ExportOptions{Stamp: time.Now()}))
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), icsLineLimit, line)
	}

	unfolded := strings.ReplaceAll(out, "\r\n ", "")
	assert.Contains(t, unfolded, "SUMMARY:"+strings.Repeat("é", 60)+"\r\n")
}
