package dto

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,selfrole"`
}

// RegisterCompanyRequest is the body of POST /api/register/company.
type RegisterCompanyRequest struct {
	CompanyName   string `json:"companyName" validate:"required"`
	Domain        string `json:"domain"`
	AdminName     string `json:"adminName" validate:"required"`
	AdminEmail    string `json:"adminEmail" validate:"required,email"`
	AdminUsername string `json:"adminUsername"`
	Password      string `json:"password" validate:"required,min=8"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// UpdateProfileRequest is the body of PUT /api/me.
type UpdateProfileRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=100"`
	Username       *string `json:"username" validate:"omitempty,min=1,max=50"`
	ProfilePicture *string `json:"profilePicture"`
}

// ChangePasswordRequest is the body of PUT /api/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// UpdateRoleRequest is the body of PUT /api/admin/users/{id}/role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,userrole"`
}
