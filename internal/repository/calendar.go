package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for calendar repository operations.
var (
	ErrEventNotFound = errors.New("calendar event not found")
)

const eventSelect = `
	SELECT e.id, e.company_id, e.title, e.description, e.starts_at, e.ends_at, e.all_day,
		e.project_id, e.color, e.location, e.recurrence_rule, e.reminder_minutes,
		e.created_by, u.name, u.email, e.created_at
	FROM calendar_events e
	JOIN users u ON u.id = e.created_by
`

// EventFilter selects events for a calendar window.
type EventFilter struct {
	CompanyID string
	From      time.Time
	To        time.Time
	ProjectID string
	// SkipRecurring leaves out events carrying a recurrence rule.
	SkipRecurring bool
}

// CreateEvent inserts a calendar event without attendees.
func (r *Repository) CreateEvent(ctx context.Context, e *model.CalendarEvent) error {
	query := `
		INSERT INTO calendar_events (id, company_id, title, description, starts_at, ends_at, all_day,
			project_id, color, location, recurrence_rule, reminder_minutes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Exec(ctx, query,
		e.ID, e.CompanyID, e.Title, e.Description, e.StartsAt, e.EndsAt, e.AllDay,
		e.ProjectID, e.Color, e.Location, e.RecurrenceRule, e.ReminderMinutes, e.CreatedBy, e.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to create calendar event: %w", err)
	}
	return nil
}

// AddEventAttendee invites a user, ignoring an existing invitation.
func (r *Repository) AddEventAttendee(ctx context.Context, eventID, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO calendar_event_attendees (event_id, user_id, status) VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id) DO NOTHING`,
		eventID, userID, model.AttendeePending,
	)
	if err != nil {
		return fmt.Errorf("failed to add event attendee: %w", err)
	}
	return nil
}

// GetEvent retrieves a company event with its attendees.
func (r *Repository) GetEvent(ctx context.Context, companyID, id string) (*model.CalendarEvent, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, eventSelect+` WHERE e.id = $1 AND e.company_id = $2`, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get calendar event: %w", err)
	}
	if err := r.loadEventAttendees(ctx, []*model.CalendarEvent{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents returns events overlapping [From, To] plus every recurring
// series that starts before To, ordered by start. Recurring series are
// expanded by the caller.
func (r *Repository) ListEvents(ctx context.Context, filter EventFilter) ([]*model.CalendarEvent, error) {
	query := eventSelect + `
		WHERE e.company_id = $1
		  AND ((e.recurrence_rule IS NULL AND e.starts_at <= $3 AND e.ends_at >= $2)
		    OR (e.recurrence_rule IS NOT NULL AND e.starts_at <= $3))`
	args := []any{filter.CompanyID, filter.From, filter.To}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(` AND e.project_id = $%d`, len(args))
	}
	if filter.SkipRecurring {
		query += ` AND e.recurrence_rule IS NULL`
	}
	query += ` ORDER BY e.starts_at, e.id`

	return r.queryEvents(ctx, query, args...)
}

// ListEventsForExport returns a company's events in a project or created by
// the user, ordered by start.
func (r *Repository) ListEventsForExport(ctx context.Context, companyID, projectID, userID string) ([]*model.CalendarEvent, error) {
	query := eventSelect + `
		WHERE e.company_id = $1 AND (e.project_id = $2 OR e.created_by = $3)
		ORDER BY e.starts_at, e.id`
	return r.queryEvents(ctx, query, companyID, projectID, userID)
}

// DeleteEvent removes an event and its attendees.
func (r *Repository) DeleteEvent(ctx context.Context, companyID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM calendar_events WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...any) ([]*model.CalendarEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	defer rows.Close()

	events := []*model.CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadEventAttendees(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) loadEventAttendees(ctx context.Context, events []*model.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, len(events))
	byID := make(map[string]*model.CalendarEvent, len(events))
	for i, e := range events {
		ids[i] = e.ID
		e.Attendees = []model.EventAttendee{}
		byID[e.ID] = e
	}

	rows, err := r.db.Query(ctx, `
		SELECT a.event_id, a.user_id, u.name, a.status
		FROM calendar_event_attendees a
		JOIN users u ON u.id = a.user_id
		WHERE a.event_id = ANY($1)
		ORDER BY u.name
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load event attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID string
			a       model.EventAttendee
		)
		if err := rows.Scan(&eventID, &a.UserID, &a.Name, &a.Status); err != nil {
			return fmt.Errorf("failed to scan event attendee: %w", err)
		}
		if e, ok := byID[eventID]; ok {
			e.Attendees = append(e.Attendees, a)
		}
	}
	return rows.Err()
}

func scanEvent(row pgx.Row) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.Title,
		&e.Description,
		&e.StartsAt,
		&e.EndsAt,
		&e.AllDay,
		&e.ProjectID,
		&e.Color,
		&e.Location,
		&e.RecurrenceRule,
		&e.ReminderMinutes,
		&e.CreatedBy,
		&e.CreatorName,
		&e.CreatorEmail,
		&e.CreatedAt,
	)
	return &e, err
}
