package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for task repository operations.
var (
	ErrTaskNotFound = errors.New("task not found")
)

const taskColumns = `t.id, t.project_id, t.title, t.description, t.status, t.priority, t.assignee_id,
	u.name, t.created_by, t.due_date, t.estimated_hours, t.tags, t.completed_at, t.created_at, t.updated_at`

const taskFrom = `
	FROM tasks t
	JOIN projects p ON p.id = t.project_id
	LEFT JOIN users u ON u.id = t.assignee_id
`

// TaskFilter defines filters for listing tasks.
type TaskFilter struct {
	CompanyID  string
	ProjectID  string
	Status     string
	AssigneeID string
	Tag        string
	Limit      int
}

// CreateTask inserts a new task.
func (r *Repository) CreateTask(ctx context.Context, t *model.Task) error {
	query := `
		INSERT INTO tasks (id, project_id, title, description, status, priority, assignee_id, created_by,
			due_date, estimated_hours, tags, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID, t.CreatedBy,
		t.DueDate, t.EstimatedHours, tags, t.CompletedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, scoped to the company through its project.
func (r *Repository) GetTask(ctx context.Context, companyID, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + ` WHERE t.id = $1 AND p.company_id = $2`

	t, err := scanTask(r.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// GetTaskForUpdate locks the task row for the rest of the transaction.
func (r *Repository) GetTaskForUpdate(ctx context.Context, companyID, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + ` WHERE t.id = $1 AND p.company_id = $2 FOR UPDATE OF t`

	t, err := scanTask(r.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}
	return t, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (r *Repository) ListTasks(ctx context.Context, filter TaskFilter) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + ` WHERE p.company_id = $1`
	args := []any{filter.CompanyID}
	argIndex := 2

	if filter.ProjectID != "" {
		query += fmt.Sprintf(" AND t.project_id = $%d", argIndex)
		args = append(args, filter.ProjectID)
		argIndex++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND t.status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}
	if filter.AssigneeID != "" {
		query += fmt.Sprintf(" AND t.assignee_id = $%d", argIndex)
		args = append(args, filter.AssigneeID)
		argIndex++
	}
	if filter.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(t.tags)", argIndex)
		args = append(args, filter.Tag)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d", argIndex)
	args = append(args, clampLimit(filter.Limit, 200, 500))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// ListTasksDueBetween returns open assigned tasks due in [from, to).
func (r *Repository) ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + `
		WHERE t.assignee_id IS NOT NULL AND t.status <> 'done'
		  AND t.due_date >= $1 AND t.due_date < $2
		ORDER BY t.due_date`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask writes every mutable task field.
func (r *Repository) UpdateTask(ctx context.Context, t *model.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, assignee_id = $6,
			due_date = $7, estimated_hours = $8, tags = $9, completed_at = $10, updated_at = NOW()
		WHERE id = $1
	`

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	result, err := r.db.Exec(ctx, query,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID,
		t.DueDate, t.EstimatedHours, tags, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// CreateTaskComment inserts a comment.
func (r *Repository) CreateTaskComment(ctx context.Context, c *model.TaskComment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO task_comments (id, task_id, user_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TaskID, c.UserID, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListTaskComments returns a task's comments, oldest first.
func (r *Repository) ListTaskComments(ctx context.Context, taskID string) ([]*model.TaskComment, error) {
	query := `
		SELECT c.id, c.task_id, c.user_id, u.name, c.content, c.created_at
		FROM task_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.task_id = $1
		ORDER BY c.created_at, c.id
	`

	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.TaskComment
	for rows.Next() {
		var c model.TaskComment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.UserName, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// CountTaskComments returns how many comments a task has.
func (r *Repository) CountTaskComments(ctx context.Context, taskID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM task_comments WHERE task_id = $1`, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}

// CreateTaskActivity appends to a task's history.
func (r *Repository) CreateTaskActivity(ctx context.Context, a *model.TaskActivity) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO task_activity (id, task_id, user_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		a.ID, a.TaskID, a.UserID, a.Action, a.Details.String(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task activity: %w", err)
	}
	return nil
}

// ListTaskActivity returns a task's history, newest first.
func (r *Repository) ListTaskActivity(ctx context.Context, taskID string) ([]*model.TaskActivity, error) {
	query := `
		SELECT a.id, a.task_id, a.user_id, u.name, a.action, a.details, a.created_at
		FROM task_activity a
		JOIN users u ON u.id = a.user_id
		WHERE a.task_id = $1
		ORDER BY a.created_at DESC, a.id DESC
	`

	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task activity: %w", err)
	}
	defer rows.Close()

	var items []*model.TaskActivity
	for rows.Next() {
		var a model.TaskActivity
		var details []byte
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UserID, &a.UserName, &a.Action, &details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task activity: %w", err)
		}
		a.Details = details
		items = append(items, &a)
	}
	return items, rows.Err()
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.AssigneeID,
		&t.AssigneeName,
		&t.CreatedBy,
		&t.DueDate,
		&t.EstimatedHours,
		&t.Tags,
		&t.CompletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return &t, err
}
