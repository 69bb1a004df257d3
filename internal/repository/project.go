package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for project repository operations.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrAlreadyMember   = errors.New("user is already a member")
	ErrNotMember       = errors.New("user is not a member")
)

const projectColumns = `p.id, p.company_id, p.name, p.description, p.status, p.priority,
	p.start_date, p.end_date, p.owner_id, p.manager_id, p.created_at, p.updated_at`

// ProjectFilter defines filters for listing projects.
type ProjectFilter struct {
	CompanyID string
	Status    string
	// MemberID restricts results to projects the user owns, manages or belongs to.
	MemberID string
}

// CreateProject inserts a new project.
func (r *Repository) CreateProject(ctx context.Context, p *model.Project) error {
	query := `
		INSERT INTO projects (id, company_id, name, description, status, priority, start_date, end_date,
			owner_id, manager_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.CompanyID, p.Name, p.Description, p.Status, p.Priority,
		p.StartDate, p.EndDate, p.OwnerID, p.ManagerID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a company project by ID.
func (r *Repository) GetProject(ctx context.Context, companyID, id string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1 AND p.company_id = $2`

	p, err := scanProject(r.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects retrieves a page of projects, newest first.
func (r *Repository) ListProjects(ctx context.Context, filter ProjectFilter, cursor string, limit int) ([]*model.Project, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}
	limit = clampLimit(limit, 20, 100)

	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.company_id = $1`
	args := []any{filter.CompanyID}
	argIndex := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND p.status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.MemberID != "" {
		query += fmt.Sprintf(` AND (p.owner_id = $%d OR p.manager_id = $%d
			OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $%d))`,
			argIndex, argIndex, argIndex)
		args = append(args, filter.MemberID)
		argIndex++
	}

	if cursorData != nil {
		query += fmt.Sprintf(" AND (p.created_at, p.id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY p.created_at DESC, p.id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating projects: %w", err)
	}

	var nextCursor string
	if len(projects) > limit {
		projects = projects[:limit]
		last := projects[len(projects)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, CreatedAt: last.CreatedAt})
	}

	return projects, nextCursor, nil
}

// UpdateProject updates a project's mutable fields.
func (r *Repository) UpdateProject(ctx context.Context, p *model.Project) error {
	query := `
		UPDATE projects
		SET name = $3, description = $4, status = $5, priority = $6, start_date = $7, end_date = $8,
			manager_id = $9, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	result, err := r.db.Exec(ctx, query,
		p.ID, p.CompanyID, p.Name, p.Description, p.Status, p.Priority, p.StartDate, p.EndDate, p.ManagerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// DeleteProject removes a project and, by cascade, its tasks and members.
func (r *Repository) DeleteProject(ctx context.Context, companyID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// AddProjectMember inserts a project membership.
func (r *Repository) AddProjectMember(ctx context.Context, projectID, userID, role string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)`,
		projectID, userID, role,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyMember
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to add project member: %w", err)
	}
	return nil
}

// RemoveProjectMember deletes a project membership.
func (r *Repository) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// GetProjectMemberRole returns the user's membership role in the project.
func (r *Repository) GetProjectMemberRole(ctx context.Context, projectID, userID string) (string, error) {
	var role string
	err := r.db.QueryRow(ctx,
		`SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotMember
		}
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	return role, nil
}

// ListProjectMembers returns the members of a project.
func (r *Repository) ListProjectMembers(ctx context.Context, projectID string) ([]*model.ProjectMember, error) {
	query := `
		SELECT pm.project_id, pm.user_id, u.name, u.email, pm.role, pm.joined_at
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY pm.joined_at, u.name
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()

	var members []*model.ProjectMember
	for rows.Next() {
		var m model.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// CountTasksByStatus counts a project's tasks per status.
func (r *Repository) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE project_id = $1 GROUP BY status`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(model.TaskStatuses))
	for _, s := range model.TaskStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountProjectMembers returns the number of members of a project.
func (r *Repository) CountProjectMembers(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM project_members WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count project members: %w", err)
	}
	return n, nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.Priority,
		&p.StartDate,
		&p.EndDate,
		&p.OwnerID,
		&p.ManagerID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return &p, err
}

// ProjectNames maps project ids to names. Unknown ids are omitted.
func (r *Repository) ProjectNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id, name FROM projects WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load project names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan project name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
