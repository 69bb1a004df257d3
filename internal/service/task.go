package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

// Deadline reminder kinds.
const (
	ReminderUpcoming = "upcoming"
	ReminderToday    = "today"
	ReminderOverdue  = "overdue"
)

// reminderWindow is how far ahead and behind the reminder sweep looks.
const reminderWindow = 24 * time.Hour

// ReminderMarker deduplicates deadline reminders.
type ReminderMarker interface {
	MarkReminderSent(ctx context.Context, taskID, kind string, ttl time.Duration) (bool, error)
}

// TaskService handles tasks, comments and task history.
type TaskService struct {
	repo      *repository.Repository
	notifier  Notifier
	activity  activity.Emitter
	reminders ReminderMarker
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService. reminders may be nil, in which
// case every sweep re-sends reminders.
func NewTaskService(
	repo *repository.Repository,
	notifier Notifier,
	emitter activity.Emitter,
	reminders ReminderMarker,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *TaskService {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if emitter == nil {
		emitter = activity.Discard{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		repo:      repo,
		notifier:  notifier,
		activity:  emitter,
		reminders: reminders,
		metrics:   recorder,
		logger:    logger.With("component", "service.task"),
	}
}

// CreateTaskInput defines input for creating a task.
type CreateTaskInput struct {
	ProjectID      string
	Title          string
	Description    string
	Status         string
	Priority       string
	AssigneeID     string
	DueDate        *time.Time
	EstimatedHours *float64
	Tags           []string
}

// Create inserts a task into a company project.
func (s *TaskService) Create(ctx context.Context, ac *model.AuthContext, input CreateTaskInput) (*model.Task, error) {
	project, err := s.project(ctx, ac, input.ProjectID)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = model.TaskTodo
	}
	if !model.IsValidTaskStatus(status) {
		return nil, ErrInvalidStatus
	}
	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.IsValidPriority(priority) {
		return nil, ErrInvalidPriority
	}

	var assignee *model.User
	if input.AssigneeID != "" {
		if assignee, err = companyUser(ctx, s.repo, ac.CompanyID, input.AssigneeID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:             generateULID(),
		ProjectID:      project.ID,
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		Status:         status,
		Priority:       priority,
		AssigneeID:     optional(input.AssigneeID),
		CreatedBy:      ac.UserID,
		DueDate:        input.DueDate,
		EstimatedHours: input.EstimatedHours,
		Tags:           normalizeTags(input.Tags),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if assignee != nil {
		task.AssigneeName = &assignee.Name
	}
	applyCompletion(task, "", now)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		return tx.CreateTaskActivity(ctx, newTaskActivity(task.ID, ac.UserID, model.TaskActionCreated, map[string]string{"title": task.Title}))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.metrics.IncTaskCreated()
	emit(s.activity, ac, EntityTask, task.ID, model.TaskActionCreated, map[string]string{"projectId": project.ID, "title": task.Title})
	if assignee != nil && assignee.ID != ac.UserID {
		s.notifier.TaskAssigned(ctx, task, project.Name, s.userName(ctx, ac.UserID))
	}
	s.logger.Info("task_created", "task_id", task.ID, "project_id", project.ID)
	return task, nil
}

// TaskListFilter selects tasks for List.
type TaskListFilter struct {
	ProjectID  string
	Status     string
	AssigneeID string
	Tag        string
	Mine       bool
}

// List returns company tasks matching filter.
func (s *TaskService) List(ctx context.Context, ac *model.AuthContext, filter TaskListFilter) ([]*model.Task, error) {
	if filter.Status != "" && !model.IsValidTaskStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	assignee := filter.AssigneeID
	if filter.Mine {
		assignee = ac.UserID
	}

	tasks, err := s.repo.ListTasks(ctx, repository.TaskFilter{
		CompanyID:  ac.CompanyID,
		ProjectID:  filter.ProjectID,
		Status:     filter.Status,
		AssigneeID: assignee,
		Tag:        filter.Tag,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

// Get returns a company task.
func (s *TaskService) Get(ctx context.Context, ac *model.AuthContext, id string) (*model.Task, error) {
	task, err := s.repo.GetTask(ctx, ac.CompanyID, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// UpdateTaskInput holds optional task changes.
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	AssigneeID     *string
	DueDate        *time.Time
	EstimatedHours *float64
	Tags           *[]string
}

// IsEmpty reports whether no updatable field was supplied.
func (in UpdateTaskInput) IsEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Status == nil && in.Priority == nil &&
		in.AssigneeID == nil && in.DueDate == nil && in.EstimatedHours == nil && in.Tags == nil
}

// Update applies a partial update and records the changed fields. Supplying
// fields that already hold the requested values returns the task unchanged,
// so replayed offline changes succeed.
func (s *TaskService) Update(ctx context.Context, ac *model.AuthContext, id string, input UpdateTaskInput) (*model.Task, error) {
	if input.IsEmpty() {
		return nil, ErrNothingToUpdate
	}
	task, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	previousStatus := task.Status
	previousAssignee := deref(task.AssigneeID)
	changed, err := s.applyUpdate(ctx, ac, task, input)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return task, nil
	}
	now := time.Now().UTC()
	applyCompletion(task, previousStatus, now)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		return tx.CreateTaskActivity(ctx, newTaskActivity(task.ID, ac.UserID, model.TaskActionUpdated, map[string]any{"fields": changed}))
	})
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	task.UpdatedAt = now

	s.metrics.IncTaskUpdated()
	emit(s.activity, ac, EntityTask, task.ID, model.TaskActionUpdated, map[string]any{"fields": changed})
	if newAssignee := deref(task.AssigneeID); newAssignee != "" && newAssignee != previousAssignee && newAssignee != ac.UserID {
		s.notifyAssignee(ctx, ac, task)
	}
	return task, nil
}

func (s *TaskService) applyUpdate(ctx context.Context, ac *model.AuthContext, task *model.Task, input UpdateTaskInput) ([]string, error) {
	changed := []string{}
	if input.Title != nil && strings.TrimSpace(*input.Title) != task.Title {
		task.Title = strings.TrimSpace(*input.Title)
		changed = append(changed, "title")
	}
	if input.Description != nil && *input.Description != task.Description {
		task.Description = *input.Description
		changed = append(changed, "description")
	}
	if input.Status != nil && *input.Status != task.Status {
		if !model.IsValidTaskStatus(*input.Status) {
			return nil, ErrInvalidStatus
		}
		task.Status = *input.Status
		changed = append(changed, "status")
	}
	if input.Priority != nil && *input.Priority != task.Priority {
		if !model.IsValidPriority(*input.Priority) {
			return nil, ErrInvalidPriority
		}
		task.Priority = *input.Priority
		changed = append(changed, "priority")
	}
	if input.AssigneeID != nil && *input.AssigneeID != deref(task.AssigneeID) {
		if *input.AssigneeID != "" {
			user, err := companyUser(ctx, s.repo, ac.CompanyID, *input.AssigneeID)
			if err != nil {
				return nil, err
			}
			task.AssigneeName = &user.Name
		} else {
			task.AssigneeName = nil
		}
		task.AssigneeID = optional(*input.AssigneeID)
		changed = append(changed, "assigneeId")
	}
	if input.DueDate != nil && (task.DueDate == nil || !task.DueDate.Equal(*input.DueDate)) {
		task.DueDate = input.DueDate
		changed = append(changed, "dueDate")
	}
	if input.EstimatedHours != nil && (task.EstimatedHours == nil || *task.EstimatedHours != *input.EstimatedHours) {
		task.EstimatedHours = input.EstimatedHours
		changed = append(changed, "estimatedHours")
	}
	if input.Tags != nil {
		tags := normalizeTags(*input.Tags)
		if !slices.Equal(tags, task.Tags) {
			task.Tags = tags
			changed = append(changed, "tags")
		}
	}
	return changed, nil
}

// Delete removes a task. Allowed for its creator, project managers and Admins.
func (s *TaskService) Delete(ctx context.Context, ac *model.AuthContext, id string) error {
	task, err := s.Get(ctx, ac, id)
	if err != nil {
		return err
	}
	if task.CreatedBy != ac.UserID && !isAdmin(ac) {
		project, err := s.project(ctx, ac, task.ProjectID)
		if err != nil {
			return err
		}
		ok, err := canManageProject(ctx, s.repo, ac, project)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
	}

	if err := s.repo.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.metrics.IncTaskDeleted()
	emit(s.activity, ac, EntityTask, id, "deleted", map[string]string{"projectId": task.ProjectID})
	s.logger.Info("task_deleted", "task_id", id)
	return nil
}

// Assign sets the task's assignee in one transaction and notifies them.
func (s *TaskService) Assign(ctx context.Context, ac *model.AuthContext, id, assigneeID string) (*model.Task, error) {
	var task *model.Task
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		task, err = tx.GetTaskForUpdate(ctx, ac.CompanyID, id)
		if err != nil {
			return err
		}
		assignee, err := tx.GetCompanyUser(ctx, ac.CompanyID, assigneeID)
		if err != nil {
			return err
		}

		previous := deref(task.AssigneeID)
		task.AssigneeID = &assignee.ID
		task.AssigneeName = &assignee.Name
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		return tx.CreateTaskActivity(ctx, newTaskActivity(task.ID, ac.UserID, model.TaskActionAssigned,
			map[string]string{"from": previous, "to": assignee.ID}))
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTaskNotFound):
			return nil, ErrTaskNotFound
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	task.UpdatedAt = time.Now().UTC()

	s.metrics.IncTaskUpdated()
	emit(s.activity, ac, EntityTask, task.ID, model.TaskActionAssigned, map[string]string{"assigneeId": assigneeID})
	if assigneeID != ac.UserID {
		s.notifyAssignee(ctx, ac, task)
	}
	s.logger.Info("task_assigned", "task_id", task.ID, "assignee_id", assigneeID)
	return task, nil
}

// ChangeStatus moves a task to status, maintaining its completion time.
func (s *TaskService) ChangeStatus(ctx context.Context, ac *model.AuthContext, id, status string) (*model.Task, error) {
	if !model.IsValidTaskStatus(status) {
		return nil, ErrInvalidStatus
	}
	task, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	from := task.Status
	task.Status = status
	now := time.Now().UTC()
	applyCompletion(task, from, now)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		return tx.CreateTaskActivity(ctx, newTaskActivity(task.ID, ac.UserID, model.TaskActionStatusChanged,
			map[string]string{"from": from, "to": status}))
	})
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to change status: %w", err)
	}
	task.UpdatedAt = now

	s.metrics.IncTaskUpdated()
	emit(s.activity, ac, EntityTask, task.ID, model.TaskActionStatusChanged, map[string]string{"from": from, "to": status})
	return task, nil
}

// Comments lists a task's comments.
func (s *TaskService) Comments(ctx context.Context, ac *model.AuthContext, id string) ([]*model.TaskComment, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListTaskComments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	if comments == nil {
		comments = []*model.TaskComment{}
	}
	return comments, nil
}

// AddComment adds a comment and records it in the task history.
func (s *TaskService) AddComment(ctx context.Context, ac *model.AuthContext, id, content string) (*model.TaskComment, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return nil, err
	}

	comment := &model.TaskComment{
		ID:        generateULID(),
		TaskID:    id,
		UserID:    ac.UserID,
		UserName:  s.userName(ctx, ac.UserID),
		Content:   strings.TrimSpace(content),
		CreatedAt: time.Now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateTaskComment(ctx, comment); err != nil {
			return err
		}
		return tx.CreateTaskActivity(ctx, newTaskActivity(id, ac.UserID, model.TaskActionCommented,
			map[string]string{"commentId": comment.ID}))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	emit(s.activity, ac, EntityTask, id, model.TaskActionCommented, map[string]string{"commentId": comment.ID})
	return comment, nil
}

// Activity returns the task history, newest first.
func (s *TaskService) Activity(ctx context.Context, ac *model.AuthContext, id string) ([]*model.TaskActivity, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return nil, err
	}
	items, err := s.repo.ListTaskActivity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list task activity: %w", err)
	}
	if items == nil {
		items = []*model.TaskActivity{}
	}
	return items, nil
}

// SendDeadlineReminders queues reminders for open assigned tasks due within a
// day of now, or overdue by at most a day. It returns the number queued.
func (s *TaskService) SendDeadlineReminders(ctx context.Context, now time.Time) (int, error) {
	tasks, err := s.repo.ListTasksDueBetween(ctx, now.Add(-reminderWindow), now.Add(reminderWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to list due tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ProjectID)
	}
	names, err := s.repo.ProjectNames(ctx, uniqueStrings(ids))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, t := range tasks {
		kind := reminderKind(*t.DueDate, now)
		if s.reminders != nil {
			first, err := s.reminders.MarkReminderSent(ctx, t.ID, kind, 2*reminderWindow)
			if err != nil {
				s.logger.Warn("reminder_mark_failed", "task_id", t.ID, "error", err)
				continue
			}
			if !first {
				continue
			}
		}
		s.notifier.DeadlineReminder(ctx, t, names[t.ProjectID], kind)
		sent++
	}

	if sent > 0 {
		s.logger.Info("deadline_reminders_queued", "count", sent)
	}
	return sent, nil
}

// reminderKind classifies a due date relative to now (UTC calendar days).
func reminderKind(due, now time.Time) string {
	if due.Before(now) {
		return ReminderOverdue
	}
	dy, dm, dd := due.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	if dy == ny && dm == nm && dd == nd {
		return ReminderToday
	}
	return ReminderUpcoming
}

func (s *TaskService) notifyAssignee(ctx context.Context, ac *model.AuthContext, task *model.Task) {
	projectName := ""
	if project, err := s.project(ctx, ac, task.ProjectID); err == nil {
		projectName = project.Name
	}
	s.notifier.TaskAssigned(ctx, task, projectName, s.userName(ctx, ac.UserID))
}

func (s *TaskService) project(ctx context.Context, ac *model.AuthContext, id string) (*model.Project, error) {
	p, err := s.repo.GetProject(ctx, ac.CompanyID, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (s *TaskService) userName(ctx context.Context, userID string) string {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Name
}

// applyCompletion stamps completedAt when a task becomes done and clears it
// when it leaves done.
func applyCompletion(t *model.Task, previousStatus string, now time.Time) {
	switch {
	case t.Status == model.TaskDone && (previousStatus != model.TaskDone || t.CompletedAt == nil):
		t.CompletedAt = &now
	case t.Status != model.TaskDone:
		t.CompletedAt = nil
	}
}

// normalizeTags trims, lowercases and deduplicates tags, dropping blanks.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out = append(out, tag)
		}
	}
	return uniqueStrings(out)
}

func newTaskActivity(taskID, userID, action string, details any) *model.TaskActivity {
	return &model.TaskActivity{
		ID:        generateULID(),
		TaskID:    taskID,
		UserID:    userID,
		Action:    action,
		Details:   model.MustJSON(details),
		CreatedAt: time.Now().UTC(),
	}
}
