package model

import (
	"slices"
	"time"
)

// Task statuses.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskReview     = "review"
	TaskDone       = "done"
	TaskBlocked    = "blocked"
)

// TaskStatuses lists valid task statuses.
var TaskStatuses = []string{TaskTodo, TaskInProgress, TaskReview, TaskDone, TaskBlocked}

// IsValidTaskStatus reports whether s is a known task status.
func IsValidTaskStatus(s string) bool {
	return slices.Contains(TaskStatuses, s)
}

// FeatureTag marks a task that represents a product feature.
const FeatureTag = "feature"

// Task activity actions.
const (
	TaskActionCreated       = "created"
	TaskActionUpdated       = "updated"
	TaskActionAssigned      = "assigned"
	TaskActionStatusChanged = "status_changed"
	TaskActionCommented     = "commented"
)

// Task is a unit of work inside a project.
type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"projectId"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     *string    `json:"assigneeId,omitempty"`
	AssigneeName   *string    `json:"assigneeName,omitempty"`
	CreatedBy      string     `json:"createdBy"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	Tags           []string   `json:"tags"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// IsFeature reports whether the task carries the feature tag.
func (t *Task) IsFeature() bool {
	return slices.Contains(t.Tags, FeatureTag)
}

// IsOverdue reports whether the task is past its due date and not done.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != TaskDone && now.After(*t.DueDate)
}

// TaskComment is a comment on a task.
type TaskComment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskActivity is an entry in a task's history.
type TaskActivity struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Action    string    `json:"action"`
	Details   RawJSON   `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}
