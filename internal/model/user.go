// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Role names stored on users.role.
const (
	RoleAdmin          = "Admin"
	RoleManager        = "Manager"
	RoleMember         = "Member"
	RoleDeveloper      = "Developer"
	RoleProjectManager = "Project Manager"

	// RoleTeamLeader is derived at login for users that lead a team. It is never stored.
	RoleTeamLeader = "Team Leader"
)

// AssignableRoles are the roles a user row may carry.
var AssignableRoles = []string{RoleAdmin, RoleManager, RoleMember, RoleDeveloper, RoleProjectManager}

// IsAssignableRole reports whether role may be stored on a user.
func IsAssignableRole(role string) bool {
	return slices.Contains(AssignableRoles, role)
}

// SelfAssignableRoles are the roles public sign-up may request. Admin is
// only granted through company registration or by an existing Admin.
var SelfAssignableRoles = []string{RoleManager, RoleMember, RoleDeveloper, RoleProjectManager}

// IsSelfAssignableRole reports whether role may be chosen at sign-up.
func IsSelfAssignableRole(role string) bool {
	return slices.Contains(SelfAssignableRoles, role)
}

// Registration types.
const (
	RegistrationIndividual = "individual"
	RegistrationCompany    = "company"
)

// Company is a tenant. Every company-scoped row carries its ID.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    *string   `json:"domain,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User is an account within a company.
type User struct {
	ID               string     `json:"id"`
	CompanyID        *string    `json:"companyId"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	PasswordHash     string     `json:"-"`
	Role             string     `json:"role"`
	IsAdmin          bool       `json:"isAdmin"`
	RegistrationType string     `json:"registrationType"`
	Tier             string     `json:"tier"`
	RefreshToken     *string    `json:"-"`
	ProfilePicture   *string    `json:"profilePicture,omitempty"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// CompanyIDValue returns the company ID or "" for users without a company.
func (u *User) CompanyIDValue() string {
	if u.CompanyID == nil {
		return ""
	}
	return *u.CompanyID
}

// HasAdminRights reports whether the user may administer their company.
func (u *User) HasAdminRights() bool {
	return u.IsAdmin || u.Role == RoleAdmin
}

// UserSummary is the public projection of a user embedded in other resources.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
