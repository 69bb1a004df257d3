package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrUsernameExists  = errors.New("username already exists")
	ErrCompanyNotFound = errors.New("company not found")
)

const userColumns = `id, company_id, name, email, username, password_hash, role, is_admin,
	registration_type, tier, refresh_token, profile_picture, last_login_at, created_at, updated_at`

// CreateCompany inserts a new company.
func (r *Repository) CreateCompany(ctx context.Context, company *model.Company) error {
	query := `
		INSERT INTO companies (id, name, domain, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		company.ID,
		company.Name,
		company.Domain,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetCompany retrieves a company by ID.
func (r *Repository) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	query := `SELECT id, name, domain, created_at, updated_at FROM companies WHERE id = $1`

	var c model.Company
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Domain, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, company_id, name, email, username, password_hash, role, is_admin,
			registration_type, tier, profile_picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.CompanyID,
		user.Name,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.IsAdmin,
		user.RegistrationType,
		user.Tier,
		user.ProfilePicture,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == "users_username_unique" {
				return ErrUsernameExists
			}
			return ErrEmailExists
		}
		if isForeignKeyViolation(err) {
			return ErrCompanyNotFound
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetCompanyUser retrieves a user by ID, restricted to the company.
func (r *Repository) GetCompanyUser(ctx context.Context, companyID, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND company_id = $2`

	user, err := scanUser(r.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get company user: %w", err)
	}
	return user, nil
}

// ListUsersByCompany returns every user of a company ordered by name.
func (r *Repository) ListUsersByCompany(ctx context.Context, companyID string) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id = $1 ORDER BY name, id`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// FilterCompanyUserIDs returns the subset of ids that belong to the company.
func (r *Repository) FilterCompanyUserIDs(ctx context.Context, companyID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM users WHERE company_id = $1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to filter users: %w", err)
	}
	defer rows.Close()

	var valid []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		valid = append(valid, id)
	}
	return valid, rows.Err()
}

// UpdateUserProfile updates name, username and profile picture.
func (r *Repository) UpdateUserProfile(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET name = $2, username = $3, profile_picture = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, user.ID, user.Name, user.Username, user.ProfilePicture)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePasswordHash replaces a user's password hash and clears their refresh token.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, refresh_token = NULL, updated_at = NOW() WHERE id = $1`,
		id, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserRole sets role and admin flag for a company user.
func (r *Repository) UpdateUserRole(ctx context.Context, companyID, id, role string, isAdmin bool) error {
	result, err := r.db.Exec(ctx,
		`UPDATE users SET role = $3, is_admin = $4, updated_at = NOW() WHERE id = $1 AND company_id = $2`,
		id, companyID, role, isAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a company user.
func (r *Repository) DeleteUser(ctx context.Context, companyID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRefreshToken stores (or clears, when token is nil) the user's refresh token.
func (r *Repository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordLogin stores the new refresh token and last login time in one statement.
func (r *Repository) RecordLogin(ctx context.Context, id, refreshToken string, at time.Time) error {
	result, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = $2, last_login_at = $3 WHERE id = $1`,
		id, refreshToken, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IsTeamLead reports whether the user leads at least one team.
func (r *Repository) IsTeamLead(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE lead_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check team lead: %w", err)
	}
	return exists, nil
}

// GetUserTier returns the assistant tier stored on the user.
func (r *Repository) GetUserTier(ctx context.Context, userID string) (string, error) {
	var tier string
	err := r.db.QueryRow(ctx, `SELECT tier FROM users WHERE id = $1`, userID).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user tier: %w", err)
	}
	return tier, nil
}

// scanUser scans a single row into a User model.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.CompanyID,
		&user.Name,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.IsAdmin,
		&user.RegistrationType,
		&user.Tier,
		&user.RefreshToken,
		&user.ProfilePicture,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return &user, err
}
