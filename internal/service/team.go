package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

var errInvalidTeamRole = fmt.Errorf("%w: team role must be %q or %q", ErrInvalidRole, model.TeamRoleLead, model.TeamRoleMember)

// TeamService manages teams and their members.
type TeamService struct {
	repo     *repository.Repository
	activity activity.Emitter
	logger   *slog.Logger
}

// NewTeamService creates a new TeamService.
func NewTeamService(repo *repository.Repository, emitter activity.Emitter, logger *slog.Logger) *TeamService {
	if emitter == nil {
		emitter = activity.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamService{repo: repo, activity: emitter, logger: logger.With("component", "service.team")}
}

// TeamInput defines the writable team fields.
type TeamInput struct {
	Name        string
	Description string
	LeadID      string
}

// List returns the company's teams.
func (s *TeamService) List(ctx context.Context, ac *model.AuthContext) ([]*model.Team, error) {
	teams, err := s.repo.ListTeams(ctx, ac.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// Create adds a team. The lead, when given, becomes a member with role lead.
func (s *TeamService) Create(ctx context.Context, ac *model.AuthContext, input TeamInput) (*model.Team, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}
	if !ac.HasRole(model.RoleManager) {
		return nil, ErrForbidden
	}
	if input.LeadID != "" {
		if _, err := companyUser(ctx, s.repo, ac.CompanyID, input.LeadID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	team := &model.Team{
		ID:          generateULID(),
		CompanyID:   ac.CompanyID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		LeadID:      optional(input.LeadID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateTeam(ctx, team); err != nil {
			return err
		}
		if team.LeadID != nil {
			return tx.AddTeamMember(ctx, team.ID, *team.LeadID, model.TeamRoleLead)
		}
		return nil
	})
	if err != nil {
		return nil, mapTeamError(err, "failed to create team")
	}
	if team.LeadID != nil {
		team.MemberCount = 1
	}

	emit(s.activity, ac, EntityTeam, team.ID, "created", map[string]string{"name": team.Name})
	s.logger.Info("team_created", "team_id", team.ID)
	return team, nil
}

// Get returns a company team.
func (s *TeamService) Get(ctx context.Context, ac *model.AuthContext, id string) (*model.Team, error) {
	team, err := s.repo.GetTeam(ctx, ac.CompanyID, id)
	if err != nil {
		return nil, mapTeamError(err, "failed to get team")
	}
	return team, nil
}

// Update replaces the team's name, description and lead.
func (s *TeamService) Update(ctx context.Context, ac *model.AuthContext, id string, input TeamInput) (*model.Team, error) {
	team, err := s.managed(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if input.LeadID != "" && input.LeadID != deref(team.LeadID) {
		if _, err := companyUser(ctx, s.repo, ac.CompanyID, input.LeadID); err != nil {
			return nil, err
		}
	}

	team.Name = strings.TrimSpace(input.Name)
	team.Description = input.Description
	team.LeadID = optional(input.LeadID)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return err
		}
		if team.LeadID == nil {
			return nil
		}
		err := tx.AddTeamMember(ctx, team.ID, *team.LeadID, model.TeamRoleLead)
		if errors.Is(err, repository.ErrAlreadyMember) {
			return tx.UpdateTeamMemberRole(ctx, team.ID, *team.LeadID, model.TeamRoleLead)
		}
		return err
	})
	if err != nil {
		return nil, mapTeamError(err, "failed to update team")
	}

	emit(s.activity, ac, EntityTeam, team.ID, "updated", map[string]string{"name": team.Name})
	return s.Get(ctx, ac, id)
}

// Delete removes a team.
func (s *TeamService) Delete(ctx context.Context, ac *model.AuthContext, id string) error {
	if _, err := s.managed(ctx, ac, id); err != nil {
		return err
	}
	if err := s.repo.DeleteTeam(ctx, ac.CompanyID, id); err != nil {
		return mapTeamError(err, "failed to delete team")
	}
	emit(s.activity, ac, EntityTeam, id, "deleted", nil)
	s.logger.Info("team_deleted", "team_id", id)
	return nil
}

// Members lists a team's members.
func (s *TeamService) Members(ctx context.Context, ac *model.AuthContext, id string) ([]*model.TeamMember, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return nil, err
	}
	members, err := s.repo.ListTeamMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	if members == nil {
		members = []*model.TeamMember{}
	}
	return members, nil
}

// AddMember adds a company user to the team.
func (s *TeamService) AddMember(ctx context.Context, ac *model.AuthContext, id, userID, role string) error {
	if role == "" {
		role = model.TeamRoleMember
	}
	if !validTeamRole(role) {
		return errInvalidTeamRole
	}
	if _, err := s.managed(ctx, ac, id); err != nil {
		return err
	}
	if _, err := companyUser(ctx, s.repo, ac.CompanyID, userID); err != nil {
		return err
	}
	if err := s.repo.AddTeamMember(ctx, id, userID, role); err != nil {
		return mapTeamError(err, "failed to add team member")
	}
	emit(s.activity, ac, EntityTeam, id, "member_added", map[string]string{"userId": userID, "role": role})
	return nil
}

// RemoveMember removes a user from the team.
func (s *TeamService) RemoveMember(ctx context.Context, ac *model.AuthContext, id, userID string) error {
	if _, err := s.managed(ctx, ac, id); err != nil {
		return err
	}
	if err := s.repo.RemoveTeamMember(ctx, id, userID); err != nil {
		return mapTeamError(err, "failed to remove team member")
	}
	emit(s.activity, ac, EntityTeam, id, "member_removed", map[string]string{"userId": userID})
	return nil
}

// UpdateMemberRole changes a member's team role.
func (s *TeamService) UpdateMemberRole(ctx context.Context, ac *model.AuthContext, id, userID, role string) error {
	if !validTeamRole(role) {
		return errInvalidTeamRole
	}
	if _, err := s.managed(ctx, ac, id); err != nil {
		return err
	}
	if err := s.repo.UpdateTeamMemberRole(ctx, id, userID, role); err != nil {
		return mapTeamError(err, "failed to update team member")
	}
	emit(s.activity, ac, EntityTeam, id, "member_role_changed", map[string]string{"userId": userID, "role": role})
	return nil
}

// managed loads a team the caller may modify: Admin, Manager or its lead.
func (s *TeamService) managed(ctx context.Context, ac *model.AuthContext, id string) (*model.Team, error) {
	team, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if !canManageTeam(ac, team) {
		return nil, ErrForbidden
	}
	return team, nil
}

func canManageTeam(ac *model.AuthContext, team *model.Team) bool {
	return ac.HasRole(model.RoleManager) || deref(team.LeadID) == ac.UserID
}

func validTeamRole(role string) bool {
	return role == model.TeamRoleLead || role == model.TeamRoleMember
}

func mapTeamError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repository.ErrTeamNameExists):
		return ErrTeamNameTaken
	case errors.Is(err, repository.ErrAlreadyMember):
		return ErrAlreadyMember
	case errors.Is(err, repository.ErrNotMember):
		return ErrNotMember
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
