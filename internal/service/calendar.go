package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/calendar"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

const (
	defaultEventDuration = time.Hour
	maxReminderMinutes   = 4 * 7 * 24 * 60
	maxCalendarWindow    = 366 * 24 * time.Hour
)

// CalendarService manages company calendar events.
type CalendarService struct {
	repo        *repository.Repository
	activity    activity.Emitter
	frontendURL string
	logger      *slog.Logger
	now         func() time.Time
}

// NewCalendarService creates a new CalendarService. frontendURL prefixes the
// event links in iCalendar exports.
func NewCalendarService(repo *repository.Repository, emitter activity.Emitter, frontendURL string, logger *slog.Logger) *CalendarService {
	if emitter == nil {
		emitter = activity.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarService{
		repo:        repo,
		activity:    emitter,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger.With("component", "service.calendar"),
		now:         time.Now,
	}
}

// CalendarFilter selects the listing window.
type CalendarFilter struct {
	Start         time.Time
	End           time.Time
	ProjectID     string
	ShowRecurring bool
}

// CreateEventInput defines input for creating an event.
type CreateEventInput struct {
	Title          string
	Description    string
	StartsAt       time.Time
	EndsAt         time.Time
	AllDay         bool
	ProjectID      string
	Color          string
	Location       string
	RecurrenceRule string
	AttendeeIDs    []string
	Reminders      []int
}

// List returns events overlapping the window with recurring series expanded
// into instances.
func (s *CalendarService) List(ctx context.Context, ac *model.AuthContext, filter CalendarFilter) ([]*model.CalendarEvent, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}
	if filter.Start.IsZero() || filter.End.IsZero() || filter.End.Before(filter.Start) ||
		filter.End.Sub(filter.Start) > maxCalendarWindow {
		return nil, ErrInvalidDateRange
	}

	events, err := s.repo.ListEvents(ctx, repository.EventFilter{
		CompanyID:     ac.CompanyID,
		From:          filter.Start,
		To:            filter.End,
		ProjectID:     filter.ProjectID,
		SkipRecurring: !filter.ShowRecurring,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]*model.CalendarEvent, 0, len(events))
	for _, e := range events {
		if e.RecurrenceRule == nil {
			out = append(out, e)
			continue
		}
		out = append(out, s.expand(e, filter.Start, filter.End)...)
	}
	slices.SortStableFunc(out, func(a, b *model.CalendarEvent) int {
		return a.StartsAt.Compare(b.StartsAt)
	})
	return out, nil
}

// expand returns the instances of a recurring event overlapping [from, to].
// A stored rule that no longer parses is listed as a single event.
func (s *CalendarService) expand(e *model.CalendarEvent, from, to time.Time) []*model.CalendarEvent {
	rule, err := calendar.ParseRule(*e.RecurrenceRule)
	if err != nil {
		s.logger.Warn("calendar_rule_invalid", "event_id", e.ID, "error", err)
		if e.EndsAt.Before(from) {
			return nil
		}
		return []*model.CalendarEvent{e}
	}

	duration := e.Duration()
	starts := rule.Between(e.StartsAt, from.Add(-duration), to)
	instances := make([]*model.CalendarEvent, 0, len(starts))
	for _, start := range starts {
		instance := *e
		instance.ID = e.ID + "-" + strconv.FormatInt(start.UnixMilli(), 10)
		instance.StartsAt = start
		instance.EndsAt = start.Add(duration)
		instance.RecurringInstance = true
		instance.ParentEventID = &e.ID
		instances = append(instances, &instance)
	}
	return instances
}

// Create adds an event and invites the attendees in one transaction.
func (s *CalendarService) Create(ctx context.Context, ac *model.AuthContext, input CreateEventInput) (*model.CalendarEvent, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}

	if input.StartsAt.IsZero() {
		return nil, ErrInvalidDateTime
	}
	endsAt := input.EndsAt
	if endsAt.IsZero() {
		if input.AllDay {
			endsAt = input.StartsAt.Add(24 * time.Hour)
		} else {
			endsAt = input.StartsAt.Add(defaultEventDuration)
		}
	}
	if endsAt.Before(input.StartsAt) {
		return nil, ErrInvalidDateRange
	}

	var rule *string
	if input.RecurrenceRule != "" {
		parsed, err := calendar.ParseRule(input.RecurrenceRule)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
		}
		canonical := parsed.String()
		rule = &canonical
	}

	reminders, err := reminderMinutes(input.Reminders)
	if err != nil {
		return nil, err
	}

	if input.ProjectID != "" {
		if _, err := s.repo.GetProject(ctx, ac.CompanyID, input.ProjectID); err != nil {
			if errors.Is(err, repository.ErrProjectNotFound) {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("failed to get project: %w", err)
		}
	}

	attendees := uniqueStrings(input.AttendeeIDs)
	if err := checkCompanyUsers(ctx, s.repo, ac.CompanyID, attendees); err != nil {
		return nil, err
	}

	event := &model.CalendarEvent{
		ID:              generateULID(),
		CompanyID:       ac.CompanyID,
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		StartsAt:        input.StartsAt.UTC(),
		EndsAt:          endsAt.UTC(),
		AllDay:          input.AllDay,
		ProjectID:       optional(input.ProjectID),
		Color:           input.Color,
		Location:        input.Location,
		RecurrenceRule:  rule,
		ReminderMinutes: reminders,
		CreatedBy:       ac.UserID,
		CreatedAt:       s.now().UTC(),
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateEvent(ctx, event); err != nil {
			return err
		}
		for _, userID := range attendees {
			if err := tx.AddEventAttendee(ctx, event.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	emit(s.activity, ac, EntityEvent, event.ID, "created", map[string]any{
		"title": event.Title, "projectId": input.ProjectID, "attendees": len(attendees),
	})
	s.logger.Info("calendar_event_created", "event_id", event.ID, "recurring", rule != nil)
	return s.Get(ctx, ac, event.ID)
}

// Get returns a company event.
func (s *CalendarService) Get(ctx context.Context, ac *model.AuthContext, id string) (*model.CalendarEvent, error) {
	event, err := s.repo.GetEvent(ctx, ac.CompanyID, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// Delete removes an event series.
func (s *CalendarService) Delete(ctx context.Context, ac *model.AuthContext, id string) error {
	if err := s.repo.DeleteEvent(ctx, ac.CompanyID, id); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	emit(s.activity, ac, EntityEvent, id, "deleted", nil)
	s.logger.Info("calendar_event_deleted", "event_id", id)
	return nil
}

// Export renders the project's events and the caller's own events as an
// iCalendar document.
func (s *CalendarService) Export(ctx context.Context, ac *model.AuthContext, projectID string) ([]byte, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEventsForExport(ctx, ac.CompanyID, projectID, ac.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	opts := calendar.ExportOptions{Name: "Project Calendar", Stamp: s.now()}
	if s.frontendURL != "" {
		opts.EventURL = func(id string) string { return s.frontendURL + "/calendar/event/" + id }
	}
	return calendar.Export(events, opts), nil
}

func reminderMinutes(in []int) ([]int32, error) {
	out := make([]int32, 0, len(in))
	seen := make(map[int]bool, len(in))
	for _, m := range in {
		if m < 0 || m > maxReminderMinutes {
			return nil, ErrInvalidReminder
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, int32(m))
	}
	return out, nil
}
