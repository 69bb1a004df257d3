package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for team repository operations.
var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrTeamNameExists = errors.New("team name already exists")
)

const teamSelect = `
	SELECT t.id, t.company_id, t.name, t.description, t.lead_id,
		(SELECT COUNT(*) FROM team_members tm WHERE tm.team_id = t.id) AS member_count,
		t.created_at, t.updated_at
	FROM teams t
`

// CreateTeam inserts a team.
func (r *Repository) CreateTeam(ctx context.Context, t *model.Team) error {
	query := `
		INSERT INTO teams (id, company_id, name, description, lead_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query, t.ID, t.CompanyID, t.Name, t.Description, t.LeadID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTeamNameExists
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// GetTeam retrieves a company team by ID.
func (r *Repository) GetTeam(ctx context.Context, companyID, id string) (*model.Team, error) {
	t, err := scanTeam(r.db.QueryRow(ctx, teamSelect+` WHERE t.id = $1 AND t.company_id = $2`, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

// ListTeams returns a company's teams by name.
func (r *Repository) ListTeams(ctx context.Context, companyID string) ([]*model.Team, error) {
	rows, err := r.db.Query(ctx, teamSelect+` WHERE t.company_id = $1 ORDER BY t.name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := []*model.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// UpdateTeam writes name, description and lead.
func (r *Repository) UpdateTeam(ctx context.Context, t *model.Team) error {
	query := `
		UPDATE teams SET name = $3, description = $4, lead_id = $5, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	result, err := r.db.Exec(ctx, query, t.ID, t.CompanyID, t.Name, t.Description, t.LeadID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTeamNameExists
		}
		return fmt.Errorf("failed to update team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// DeleteTeam removes a team and its memberships.
func (r *Repository) DeleteTeam(ctx context.Context, companyID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// AddTeamMember inserts a membership.
func (r *Repository) AddTeamMember(ctx context.Context, teamID, userID, role string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)`, teamID, userID, role,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

// RemoveTeamMember deletes a membership.
func (r *Repository) RemoveTeamMember(ctx context.Context, teamID, userID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// UpdateTeamMemberRole changes a member's role.
func (r *Repository) UpdateTeamMemberRole(ctx context.Context, teamID, userID, role string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE team_members SET role = $3 WHERE team_id = $1 AND user_id = $2`, teamID, userID, role,
	)
	if err != nil {
		return fmt.Errorf("failed to update team member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// ListTeamMembers returns a team's members, lead role first.
func (r *Repository) ListTeamMembers(ctx context.Context, teamID string) ([]*model.TeamMember, error) {
	query := `
		SELECT tm.team_id, tm.user_id, u.name, u.email, tm.role, tm.joined_at
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY (tm.role = 'lead') DESC, u.name
	`

	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := []*model.TeamMember{}
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func scanTeam(row pgx.Row) (*model.Team, error) {
	var t model.Team
	err := row.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Description, &t.LeadID, &t.MemberCount, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}
