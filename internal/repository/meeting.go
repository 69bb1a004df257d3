package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for meeting repository operations.
var (
	ErrMeetingNotFound = errors.New("meeting not found")
)

// Date comparison operators for meeting counts.
const (
	DateOpEqual       = "eq"
	DateOpGreaterOrEq = "gte"
	DateOpLess        = "lt"
)

// DateFilter compares a meeting's start against a calendar day (UTC).
type DateFilter struct {
	Op  string
	Day time.Time
}

const meetingSelect = `
	SELECT m.id, m.company_id, m.title, m.description, m.host_id, h.name, m.starts_at, m.duration_minutes,
		m.context, m.project_id, m.channel_name,
		(SELECT COUNT(*) FROM meeting_participants mp WHERE mp.meeting_id = m.id) AS participant_count,
		m.created_at, m.updated_at
	FROM meetings m
	JOIN users h ON h.id = m.host_id
`

// CreateMeeting inserts a new meeting.
func (r *Repository) CreateMeeting(ctx context.Context, m *model.Meeting) error {
	query := `
		INSERT INTO meetings (id, company_id, title, description, host_id, starts_at, duration_minutes,
			context, project_id, channel_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.CompanyID, m.Title, m.Description, m.HostID, m.StartsAt, m.DurationMinutes,
		m.Context, m.ProjectID, m.ChannelName, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// GetMeeting retrieves a company meeting by ID.
func (r *Repository) GetMeeting(ctx context.Context, companyID, id string) (*model.Meeting, error) {
	query := meetingSelect + ` WHERE m.id = $1 AND m.company_id = $2`

	m, err := scanMeeting(r.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListMeetingsForUser returns meetings the user hosts or participates in, by start time.
func (r *Repository) ListMeetingsForUser(ctx context.Context, companyID, userID string) ([]*model.Meeting, error) {
	query := meetingSelect + `
		WHERE m.company_id = $1
		  AND (m.host_id = $2 OR EXISTS (
			SELECT 1 FROM meeting_participants mp WHERE mp.meeting_id = m.id AND mp.user_id = $2))
		ORDER BY m.starts_at, m.id`

	rows, err := r.db.Query(ctx, query, companyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meetings: %w", err)
	}
	return meetings, nil
}

// CountMeetingsForUser counts the user's meetings matching an optional date filter.
func (r *Repository) CountMeetingsForUser(ctx context.Context, companyID, userID string, filter *DateFilter) (int, error) {
	query := `
		SELECT COUNT(*) FROM meetings m
		WHERE m.company_id = $1
		  AND (m.host_id = $2 OR EXISTS (
			SELECT 1 FROM meeting_participants mp WHERE mp.meeting_id = m.id AND mp.user_id = $2))`
	args := []any{companyID, userID}

	if filter != nil {
		day := utcDay(filter.Day)
		switch filter.Op {
		case DateOpGreaterOrEq:
			query += ` AND m.starts_at >= $3`
			args = append(args, day)
		case DateOpLess:
			query += ` AND m.starts_at < $3`
			args = append(args, day)
		default:
			query += ` AND m.starts_at >= $3 AND m.starts_at < $4`
			args = append(args, day, day.AddDate(0, 0, 1))
		}
	}

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count meetings: %w", err)
	}
	return n, nil
}

// UpdateMeeting writes the mutable meeting fields.
func (r *Repository) UpdateMeeting(ctx context.Context, m *model.Meeting) error {
	query := `
		UPDATE meetings
		SET title = $3, description = $4, starts_at = $5, duration_minutes = $6, context = $7,
			project_id = $8, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	result, err := r.db.Exec(ctx, query,
		m.ID, m.CompanyID, m.Title, m.Description, m.StartsAt, m.DurationMinutes, m.Context, m.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// DeleteMeeting removes a meeting and its participants.
func (r *Repository) DeleteMeeting(ctx context.Context, companyID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM meetings WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// AddMeetingParticipant inserts a participant, ignoring existing rows.
// Returns true when a new row was inserted.
func (r *Repository) AddMeetingParticipant(ctx context.Context, meetingID, userID, role string) (bool, error) {
	result, err := r.db.Exec(ctx,
		`INSERT INTO meeting_participants (meeting_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (meeting_id, user_id) DO NOTHING`,
		meetingID, userID, role,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add participant: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// RemoveMeetingParticipant deletes a participant row.
func (r *Repository) RemoveMeetingParticipant(ctx context.Context, meetingID, userID string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM meeting_participants WHERE meeting_id = $1 AND user_id = $2`, meetingID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// IsMeetingParticipant reports whether the user is a participant (host included).
func (r *Repository) IsMeetingParticipant(ctx context.Context, meetingID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM meeting_participants WHERE meeting_id = $1 AND user_id = $2)`,
		meetingID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}

// ListMeetingParticipants returns a meeting's participants, host first.
func (r *Repository) ListMeetingParticipants(ctx context.Context, meetingID string) ([]*model.MeetingParticipant, error) {
	query := `
		SELECT mp.meeting_id, mp.user_id, u.name, u.email, mp.role, mp.joined_at
		FROM meeting_participants mp
		JOIN users u ON u.id = mp.user_id
		WHERE mp.meeting_id = $1
		ORDER BY (mp.role = 'host') DESC, mp.joined_at, u.name
	`

	rows, err := r.db.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*model.MeetingParticipant
	for rows.Next() {
		var p model.MeetingParticipant
		if err := rows.Scan(&p.MeetingID, &p.UserID, &p.Name, &p.Email, &p.Role, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

func scanMeeting(row pgx.Row) (*model.Meeting, error) {
	var m model.Meeting
	err := row.Scan(
		&m.ID,
		&m.CompanyID,
		&m.Title,
		&m.Description,
		&m.HostID,
		&m.HostName,
		&m.StartsAt,
		&m.DurationMinutes,
		&m.Context,
		&m.ProjectID,
		&m.ChannelName,
		&m.ParticipantCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return &m, err
}
