package calendar

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/model"
)

const (
	icsTimeLayout = "20060102T150405Z"
	icsDateLayout = "20060102"
	icsLineLimit  = 75
	prodID        = "-//commandgrid//pmt//EN"
)

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

// ExportOptions configures an iCalendar export.
type ExportOptions struct {
	Name string
	// EventURL, when set, builds the URL property for an event id.
	EventURL func(id string) string
	Stamp    time.Time
}

// Export renders events as an RFC 5545 VCALENDAR in UTC.
func Export(events []*model.CalendarEvent, opts ExportOptions) []byte {
	var buf bytes.Buffer
	w := icsWriter{buf: &buf}
	stamp := opts.Stamp.UTC().Format(icsTimeLayout)

	w.line("BEGIN:VCALENDAR")
	w.line("VERSION:2.0")
	w.line("PRODID:" + prodID)
	w.line("CALSCALE:GREGORIAN")
	if opts.Name != "" {
		w.line("X-WR-CALNAME:" + escapeText(opts.Name))
	}
	w.line("X-WR-TIMEZONE:UTC")

	for _, e := range events {
		w.line("BEGIN:VEVENT")
		w.line("UID:" + e.ID)
		w.line("DTSTAMP:" + stamp)
		if e.AllDay {
			w.line("DTSTART;VALUE=DATE:" + e.StartsAt.UTC().Format(icsDateLayout))
			w.line("DTEND;VALUE=DATE:" + e.EndsAt.UTC().Format(icsDateLayout))
		} else {
			w.line("DTSTART:" + e.StartsAt.UTC().Format(icsTimeLayout))
			w.line("DTEND:" + e.EndsAt.UTC().Format(icsTimeLayout))
		}
		w.line("SUMMARY:" + escapeText(e.Title))
		if e.Description != "" {
			w.line("DESCRIPTION:" + escapeText(e.Description))
		}
		if e.Location != "" {
			w.line("LOCATION:" + escapeText(e.Location))
		}
		if e.RecurrenceRule != nil {
			w.line("RRULE:" + *e.RecurrenceRule)
		}
		if opts.EventURL != nil {
			w.line("URL:" + opts.EventURL(e.ID))
		}
		if e.CreatorEmail != "" {
			w.line("ORGANIZER;CN=" + quoteParam(e.CreatorName) + ":mailto:" + e.CreatorEmail)
		}
		for _, minutes := range e.ReminderMinutes {
			w.line("BEGIN:VALARM")
			w.line("ACTION:DISPLAY")
			w.line("DESCRIPTION:" + escapeText(e.Title))
			w.line("TRIGGER:-PT" + strconv.Itoa(int(minutes)) + "M")
			w.line("END:VALARM")
		}
		w.line("END:VEVENT")
	}

	w.line("END:VCALENDAR")
	return buf.Bytes()
}

func escapeText(s string) string {
	return icsEscaper.Replace(s)
}

func quoteParam(s string) string {
	return `"` + strings.NewReplacer(`"`, "'", "\r", "", "\n", " ").Replace(s) + `"`
}

// icsWriter writes CRLF content lines folded at 75 octets.
type icsWriter struct {
	buf *bytes.Buffer
}

func (w icsWriter) line(s string) {
	// Continuation lines start with a space, which counts toward the limit.
	limit := icsLineLimit
	for len(s) > limit {
		cut := limit
		// Do not split a UTF-8 sequence.
		for cut > 0 && s[cut]&0xC0 == 0x80 {
			cut--
		}
		w.buf.WriteString(s[:cut])
		w.buf.WriteString("\r\n ")
		s = s[cut:]
		limit = icsLineLimit - 1
	}
	w.buf.WriteString(s)
	w.buf.WriteString("\r\n")
}
