package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/cache"
	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

// AuthService handles login, registration and token lifecycle.
type AuthService struct {
	repo     *repository.Repository
	cache    *cache.Cache
	tokens   *auth.TokenManager
	hasher   *auth.Hasher
	notifier Notifier
	metrics  metrics.Recorder
	audit    auditor
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	repo *repository.Repository,
	cache *cache.Cache,
	tokens *auth.TokenManager,
	hasher *auth.Hasher,
	notifier Notifier,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "service.auth")
	return &AuthService{
		repo:     repo,
		cache:    cache,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		metrics:  recorder,
		audit:    auditor{repo: repo, logger: logger},
		logger:   logger,
	}
}

// SessionUser is the user projection returned with tokens.
type SessionUser struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Name             string  `json:"name"`
	Role             string  `json:"role"`
	CompanyID        *string `json:"companyId"`
	RegistrationType string  `json:"registrationType"`
	IsAdmin          bool    `json:"isAdmin"`
}

func newSessionUser(u *model.User, role string) SessionUser {
	if role == "" {
		role = u.Role
	}
	return SessionUser{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             role,
		CompanyID:        u.CompanyID,
		RegistrationType: u.RegistrationType,
		IsAdmin:          u.HasAdminRights(),
	}
}

// LoginResult is a token pair with the signed-in user.
type LoginResult struct {
	*auth.TokenPair
	User SessionUser `json:"user"`
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncLogin(false)
			s.audit.record(ctx, "", "", model.AuditLoginFailed, "", meta, map[string]string{"email": normalizeEmail(email)})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("password_compare_failed", "user_id", user.ID, "error", err)
		}
		s.metrics.IncLogin(false)
		s.audit.record(ctx, user.CompanyIDValue(), user.ID, model.AuditLoginFailed, user.ID, meta, nil)
		return nil, ErrInvalidCredentials
	}

	role := s.displayRole(ctx, user)
	pair, err := s.tokens.IssuePair(auth.SubjectFromUser(user, role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	if err := s.repo.RecordLogin(ctx, user.ID, pair.RefreshToken, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	s.metrics.IncLogin(true)
	s.audit.record(ctx, user.CompanyIDValue(), user.ID, model.AuditLoginSuccess, user.ID, meta, nil)
	s.logger.Info("user_logged_in", "user_id", user.ID, "company_id", user.CompanyIDValue())

	return &LoginResult{TokenPair: pair, User: newSessionUser(user, role)}, nil
}

// displayRole reports "Team Leader" for non-admin users that lead a team.
func (s *AuthService) displayRole(ctx context.Context, user *model.User) string {
	if user.HasAdminRights() {
		return user.Role
	}
	lead, err := s.repo.IsTeamLead(ctx, user.ID)
	if err != nil {
		s.logger.Warn("team_lead_check_failed", "user_id", user.ID, "error", err)
		return user.Role
	}
	if lead {
		return model.RoleTeamLeader
	}
	return user.Role
}

// RegisterInput defines input for individual registration.
type RegisterInput struct {
	Name     string
	Email    string
	Username string
	Password string
	Role     string
}

// Register creates an individual account without a company. Joining a
// company happens through an Admin of that company.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, meta RequestMeta) (*model.User, error) {
	role := input.Role
	if role == "" {
		role = model.RoleMember
	}
	if !model.IsSelfAssignableRole(role) {
		return nil, ErrInvalidRole
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:               generateULID(),
		Name:             strings.TrimSpace(input.Name),
		Email:            normalizeEmail(input.Email),
		Username:         strings.TrimSpace(input.Username),
		PasswordHash:     hash,
		Role:             role,
		RegistrationType: model.RegistrationIndividual,
		Tier:             model.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, mapUserCreateError(err)
	}

	s.audit.record(ctx, user.CompanyIDValue(), user.ID, model.AuditRegister, user.ID, meta, map[string]string{"type": user.RegistrationType})
	s.notifier.Welcome(ctx, user)
	s.logger.Info("user_registered", "user_id", user.ID)
	return user, nil
}

// RegisterCompanyInput defines input for company registration.
type RegisterCompanyInput struct {
	CompanyName   string
	Domain        string
	AdminName     string
	AdminEmail    string
	AdminUsername string
	Password      string
}

// CompanyRegistration is the result of registering a company.
type CompanyRegistration struct {
	*auth.TokenPair
	Company *model.Company `json:"company"`
	User    SessionUser    `json:"user"`
}

// RegisterCompany creates a company and its administrator in one transaction.
func (s *AuthService) RegisterCompany(ctx context.Context, input RegisterCompanyInput, meta RequestMeta) (*CompanyRegistration, error) {
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	email := normalizeEmail(input.AdminEmail)
	username := strings.TrimSpace(input.AdminUsername)
	if username == "" {
		username = defaultUsername(email)
	}

	now := time.Now().UTC()
	company := &model.Company{
		ID:        generateULID(),
		Name:      strings.TrimSpace(input.CompanyName),
		Domain:    optional(strings.TrimSpace(input.Domain)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &model.User{
		ID:               generateULID(),
		CompanyID:        &company.ID,
		Name:             strings.TrimSpace(input.AdminName),
		Email:            email,
		Username:         username,
		PasswordHash:     hash,
		Role:             model.RoleAdmin,
		IsAdmin:          true,
		RegistrationType: model.RegistrationCompany,
		Tier:             model.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateCompany(ctx, company); err != nil {
			return err
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, mapUserCreateError(err)
	}

	pair, err := s.tokens.IssuePair(auth.SubjectFromUser(user, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	if err := s.repo.RecordLogin(ctx, user.ID, pair.RefreshToken, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	s.audit.record(ctx, company.ID, user.ID, model.AuditRegister, company.ID, meta, map[string]string{"type": user.RegistrationType})
	s.notifier.Welcome(ctx, user)
	s.logger.Info("company_registered", "company_id", company.ID, "admin_id", user.ID)

	return &CompanyRegistration{TokenPair: pair, Company: company, User: newSessionUser(user, "")}, nil
}

// Refresh rotates a refresh token. The presented token must be the one stored
// on the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return nil, ErrInvalidToken
	}

	pair, err := s.tokens.IssuePair(auth.SubjectFromUser(user, s.displayRole(ctx, user)))
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	if err := s.repo.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return pair, nil
}

// Logout clears the stored refresh token and revokes the current access token.
func (s *AuthService) Logout(ctx context.Context, ac *model.AuthContext, refreshToken string, meta RequestMeta) error {
	if claims, err := s.tokens.ParseRefresh(refreshToken); err == nil && claims.UserID != ac.UserID {
		return ErrInvalidToken
	}

	if err := s.repo.SetRefreshToken(ctx, ac.UserID, nil); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	if ac.TokenID != "" {
		if err := s.cache.RevokeToken(ctx, ac.TokenID, ac.ExpiresAt); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	s.audit.record(ctx, ac.CompanyID, ac.UserID, model.AuditLogout, ac.UserID, meta, nil)
	s.logger.Info("user_logged_out", "user_id", ac.UserID)
	return nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// ProfileInput holds optional profile changes. Nil fields are left unchanged.
type ProfileInput struct {
	Name           *string
	Username       *string
	ProfilePicture *string
}

// UpdateProfile applies profile changes to the caller's account.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*model.User, error) {
	if input.Name == nil && input.Username == nil && input.ProfilePicture == nil {
		return nil, ErrNothingToUpdate
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Username != nil {
		user.Username = strings.TrimSpace(*input.Username)
	}
	if input.ProfilePicture != nil {
		user.ProfilePicture = optional(*input.ProfilePicture)
	}

	if err := s.repo.UpdateUserProfile(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after verifying the current one.
// Outstanding refresh tokens stop working.
func (s *AuthService) ChangePassword(ctx context.Context, ac *model.AuthContext, current, next string, meta RequestMeta) error {
	user, err := s.Me(ctx, ac.UserID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, current); err != nil {
		return ErrWrongPassword
	}
	if err := auth.ValidatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.audit.record(ctx, ac.CompanyID, ac.UserID, model.AuditPasswordChanged, ac.UserID, meta, nil)
	return nil
}

func mapUserCreateError(err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrUsernameExists):
		return ErrUsernameTaken
	case errors.Is(err, repository.ErrCompanyNotFound):
		return ErrCompanyNotFound
	}
	return fmt.Errorf("failed to create account: %w", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// defaultUsername derives a username from the local part of an email address.
func defaultUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}
