package dto

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	ProjectID      string   `json:"projectId" validate:"required"`
	Title          string   `json:"title" validate:"required,max=300"`
	Description    string   `json:"description"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	AssigneeID     string   `json:"assigneeId"`
	DueDate        *Date    `json:"dueDate"`
	EstimatedHours *float64 `json:"estimatedHours" validate:"omitempty,min=0"`
	Tags           []string `json:"tags"`
}

// UpdateTaskRequest is the body of PUT /api/tasks/{id}.
type UpdateTaskRequest struct {
	Title          *string   `json:"title" validate:"omitempty,min=1,max=300"`
	Description    *string   `json:"description"`
	Status         *string   `json:"status"`
	Priority       *string   `json:"priority"`
	AssigneeID     *string   `json:"assigneeId"`
	DueDate        *Date     `json:"dueDate"`
	EstimatedHours *float64  `json:"estimatedHours" validate:"omitempty,min=0"`
	Tags           *[]string `json:"tags"`
}

// AssignTaskRequest is the body of PUT /api/tasks/{id}/assign.
type AssignTaskRequest struct {
	AssigneeID string `json:"assigneeId" validate:"required"`
}

// TaskStatusRequest is the body of PATCH /api/tasks/{id}/status.
type TaskStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CommentRequest is the body of POST /api/tasks/{id}/comments.
type CommentRequest struct {
	Content string `json:"content" validate:"required"`
}
