package model

import (
	"slices"
	"time"
)

// AuthContext is the authenticated principal attached to a request.
type AuthContext struct {
	UserID         string
	CompanyID      string
	Role           string
	IsAdmin        bool
	TokenID        string
	ExpiresAt      time.Time
	ImpersonatedBy string
}

// HasRole reports whether the principal carries any of roles.
// Admins satisfy every role check.
func (a *AuthContext) HasRole(roles ...string) bool {
	if a.IsAdmin || a.Role == RoleAdmin {
		return true
	}
	return slices.Contains(roles, a.Role)
}

// IsImpersonating reports whether the token was issued to an admin acting as another user.
func (a *AuthContext) IsImpersonating() bool {
	return a.ImpersonatedBy != ""
}

// AuditLog is a security-relevant event.
type AuditLog struct {
	ID        string    `json:"id"`
	CompanyID *string   `json:"companyId,omitempty"`
	UserID    *string   `json:"userId,omitempty"`
	UserName  *string   `json:"userName,omitempty"`
	Action    string    `json:"action"`
	TargetID  *string   `json:"targetId,omitempty"`
	IPAddress *string   `json:"ipAddress,omitempty"`
	UserAgent *string   `json:"userAgent,omitempty"`
	Details   RawJSON   `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// Audit actions.
const (
	AuditLoginSuccess       = "login_success"
	AuditLoginFailed        = "login_failed"
	AuditLogout             = "logout"
	AuditRegister           = "register"
	AuditPasswordChanged    = "password_changed"
	AuditRoleChanged        = "role_changed"
	AuditUserDeleted        = "user_deleted"
	AuditImpersonationStart = "impersonation_start"
	AuditImpersonationEnd   = "impersonation_end"
	AuditSecurityScan       = "security_scan"
)
