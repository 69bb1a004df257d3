package dto

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	StartDate   *Date    `json:"startDate"`
	EndDate     *Date    `json:"endDate"`
	ManagerID   string   `json:"managerId"`
	MemberIDs   []string `json:"memberIds" validate:"omitempty,dive,required"`
}

// UpdateProjectRequest is the body of PUT /api/projects/{id}.
type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	StartDate   *Date   `json:"startDate"`
	EndDate     *Date   `json:"endDate"`
	ManagerID   *string `json:"managerId"`
}

// AddMemberRequest adds a user to a project or team.
type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role"`
}

// MemberRoleRequest changes a member's role.
type MemberRoleRequest struct {
	Role string `json:"role" validate:"required"`
}
