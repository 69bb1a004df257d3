package model

import (
	"slices"
	"time"
)

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

// ProjectStatuses lists valid project statuses.
var ProjectStatuses = []string{ProjectActive, ProjectOnHold, ProjectCompleted, ProjectArchived}

// Priorities shared by projects and tasks.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Priorities lists valid priorities.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p string) bool {
	return slices.Contains(Priorities, p)
}

// Project member roles.
const (
	ProjectRoleOwner   = "owner"
	ProjectRoleManager = "manager"
	ProjectRoleMember  = "member"
	ProjectRoleViewer  = "viewer"
)

// ProjectMemberRoles lists valid member roles.
var ProjectMemberRoles = []string{ProjectRoleOwner, ProjectRoleManager, ProjectRoleMember, ProjectRoleViewer}

// Project groups tasks within a company.
type Project struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"companyId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	OwnerID     string     `json:"ownerId"`
	ManagerID   *string    `json:"managerId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ProjectMember links a user to a project.
type ProjectMember struct {
	ProjectID string    `json:"projectId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// ProjectDetails is a project with aggregate counts.
type ProjectDetails struct {
	Project
	TaskCounts           map[string]int `json:"taskCounts"`
	TotalTasks           int            `json:"totalTasks"`
	MemberCount          int            `json:"memberCount"`
	CompletionPercentage float64        `json:"completionPercentage"`
}
