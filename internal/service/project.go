package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

// ProjectService handles projects and their membership.
type ProjectService struct {
	repo     *repository.Repository
	activity activity.Emitter
	logger   *slog.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(repo *repository.Repository, emitter activity.Emitter, logger *slog.Logger) *ProjectService {
	if emitter == nil {
		emitter = activity.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{repo: repo, activity: emitter, logger: logger.With("component", "service.project")}
}

// CursorPagination describes a keyset page.
type CursorPagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ProjectPage is one page of projects.
type ProjectPage struct {
	Data       []*model.Project `json:"data"`
	Pagination CursorPagination `json:"pagination"`
}

// List returns a page of the company's projects, newest first.
func (s *ProjectService) List(ctx context.Context, ac *model.AuthContext, status, cursor string, limit int) (*ProjectPage, error) {
	if status != "" && !slices.Contains(model.ProjectStatuses, status) {
		return nil, ErrInvalidStatus
	}

	projects, next, err := s.repo.ListProjects(ctx, repository.ProjectFilter{CompanyID: ac.CompanyID, Status: status}, cursor, limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	return &ProjectPage{Data: projects, Pagination: CursorPagination{NextCursor: next, HasMore: next != ""}}, nil
}

// ListMine returns projects the caller owns, manages or belongs to.
func (s *ProjectService) ListMine(ctx context.Context, ac *model.AuthContext) ([]*model.Project, error) {
	projects, _, err := s.repo.ListProjects(ctx, repository.ProjectFilter{CompanyID: ac.CompanyID, MemberID: ac.UserID}, "", 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	return projects, nil
}

// CreateProjectInput defines input for creating a project.
type CreateProjectInput struct {
	Name        string
	Description string
	Status      string
	Priority    string
	StartDate   *time.Time
	EndDate     *time.Time
	ManagerID   string
	MemberIDs   []string
}

// Create inserts a project with the caller as owner.
func (s *ProjectService) Create(ctx context.Context, ac *model.AuthContext, input CreateProjectInput) (*model.Project, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = model.ProjectActive
	}
	if !slices.Contains(model.ProjectStatuses, status) {
		return nil, ErrInvalidStatus
	}
	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.IsValidPriority(priority) {
		return nil, ErrInvalidPriority
	}
	if err := checkDateOrder(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	members := uniqueStrings(input.MemberIDs)
	members = slices.DeleteFunc(members, func(id string) bool { return id == ac.UserID || id == input.ManagerID })
	check := members
	if input.ManagerID != "" {
		check = append([]string{input.ManagerID}, members...)
	}
	if err := checkCompanyUsers(ctx, s.repo, ac.CompanyID, check); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project := &model.Project{
		ID:          generateULID(),
		CompanyID:   ac.CompanyID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		OwnerID:     ac.UserID,
		ManagerID:   optional(input.ManagerID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateProject(ctx, project); err != nil {
			return err
		}
		if err := tx.AddProjectMember(ctx, project.ID, ac.UserID, model.ProjectRoleOwner); err != nil {
			return err
		}
		if input.ManagerID != "" && input.ManagerID != ac.UserID {
			if err := tx.AddProjectMember(ctx, project.ID, input.ManagerID, model.ProjectRoleManager); err != nil {
				return err
			}
		}
		for _, id := range members {
			if err := tx.AddProjectMember(ctx, project.ID, id, model.ProjectRoleMember); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	emit(s.activity, ac, EntityProject, project.ID, "created", map[string]string{"name": project.Name})
	s.logger.Info("project_created", "project_id", project.ID, "company_id", ac.CompanyID)
	return project, nil
}

// Get returns a company project.
func (s *ProjectService) Get(ctx context.Context, ac *model.AuthContext, id string) (*model.Project, error) {
	p, err := s.repo.GetProject(ctx, ac.CompanyID, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// UpdateProjectInput holds optional project changes.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *string
	Priority    *string
	StartDate   *time.Time
	EndDate     *time.Time
	ManagerID   *string
}

func (in UpdateProjectInput) empty() bool {
	return in.Name == nil && in.Description == nil && in.Status == nil && in.Priority == nil &&
		in.StartDate == nil && in.EndDate == nil && in.ManagerID == nil
}

// Update applies changes. Requires the owner, a manager or an Admin.
func (s *ProjectService) Update(ctx context.Context, ac *model.AuthContext, id string, input UpdateProjectInput) (*model.Project, error) {
	if input.empty() {
		return nil, ErrNothingToUpdate
	}

	p, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if ok, err := s.canManage(ctx, ac, p); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrForbidden
	}

	changed := []string{}
	if input.Name != nil {
		p.Name = strings.TrimSpace(*input.Name)
		changed = append(changed, "name")
	}
	if input.Description != nil {
		p.Description = *input.Description
		changed = append(changed, "description")
	}
	if input.Status != nil {
		if !slices.Contains(model.ProjectStatuses, *input.Status) {
			return nil, ErrInvalidStatus
		}
		p.Status = *input.Status
		changed = append(changed, "status")
	}
	if input.Priority != nil {
		if !model.IsValidPriority(*input.Priority) {
			return nil, ErrInvalidPriority
		}
		p.Priority = *input.Priority
		changed = append(changed, "priority")
	}
	if input.StartDate != nil {
		p.StartDate = input.StartDate
		changed = append(changed, "startDate")
	}
	if input.EndDate != nil {
		p.EndDate = input.EndDate
		changed = append(changed, "endDate")
	}
	if err := checkDateOrder(p.StartDate, p.EndDate); err != nil {
		return nil, err
	}
	if input.ManagerID != nil {
		if *input.ManagerID != "" {
			if _, err := companyUser(ctx, s.repo, ac.CompanyID, *input.ManagerID); err != nil {
				return nil, err
			}
		}
		p.ManagerID = optional(*input.ManagerID)
		changed = append(changed, "managerId")
	}

	if err := s.repo.UpdateProject(ctx, p); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	p.UpdatedAt = time.Now().UTC()

	emit(s.activity, ac, EntityProject, p.ID, "updated", map[string]any{"fields": changed})
	s.logger.Info("project_updated", "project_id", p.ID)
	return p, nil
}

// Delete removes a project. Requires the owner or an Admin.
func (s *ProjectService) Delete(ctx context.Context, ac *model.AuthContext, id string) error {
	p, err := s.Get(ctx, ac, id)
	if err != nil {
		return err
	}
	if p.OwnerID != ac.UserID && !isAdmin(ac) {
		return ErrForbidden
	}
	if err := s.repo.DeleteProject(ctx, ac.CompanyID, id); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}

	emit(s.activity, ac, EntityProject, id, "deleted", nil)
	s.logger.Info("project_deleted", "project_id", id)
	return nil
}

// Details returns the project with task and member counts.
func (s *ProjectService) Details(ctx context.Context, ac *model.AuthContext, id string) (*model.ProjectDetails, error) {
	p, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountTasksByStatus(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	members, err := s.repo.CountProjectMembers(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return &model.ProjectDetails{
		Project:              *p,
		TaskCounts:           counts,
		TotalTasks:           total,
		MemberCount:          members,
		CompletionPercentage: completion(counts[model.TaskDone], total),
	}, nil
}

// completion returns done/total as a percentage rounded to two decimals.
func completion(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}

// Members lists project members.
func (s *ProjectService) Members(ctx context.Context, ac *model.AuthContext, id string) ([]*model.ProjectMember, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return nil, err
	}
	members, err := s.repo.ListProjectMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddMember adds a company user to the project.
func (s *ProjectService) AddMember(ctx context.Context, ac *model.AuthContext, projectID, userID, role string) error {
	if role == "" {
		role = model.ProjectRoleMember
	}
	if role == model.ProjectRoleOwner || !slices.Contains(model.ProjectMemberRoles, role) {
		return ErrInvalidRole
	}

	p, err := s.Get(ctx, ac, projectID)
	if err != nil {
		return err
	}
	if ok, err := s.canManage(ctx, ac, p); err != nil {
		return err
	} else if !ok {
		return ErrForbidden
	}
	if _, err := companyUser(ctx, s.repo, ac.CompanyID, userID); err != nil {
		return err
	}

	if err := s.repo.AddProjectMember(ctx, projectID, userID, role); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyMember):
			return ErrAlreadyMember
		case errors.Is(err, repository.ErrUserNotFound):
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	emit(s.activity, ac, EntityProject, projectID, "member_added", map[string]string{"userId": userID, "role": role})
	return nil
}

// RemoveMember removes a member other than the owner.
func (s *ProjectService) RemoveMember(ctx context.Context, ac *model.AuthContext, projectID, userID string) error {
	p, err := s.Get(ctx, ac, projectID)
	if err != nil {
		return err
	}
	if ok, err := s.canManage(ctx, ac, p); err != nil {
		return err
	} else if !ok {
		return ErrForbidden
	}
	if userID == p.OwnerID {
		return ErrForbidden
	}

	if err := s.repo.RemoveProjectMember(ctx, projectID, userID); err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return ErrNotMember
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	emit(s.activity, ac, EntityProject, projectID, "member_removed", map[string]string{"userId": userID})
	return nil
}

// Manager returns the designated manager, falling back to the owner.
func (s *ProjectService) Manager(ctx context.Context, ac *model.AuthContext, projectID string) (*model.UserSummary, error) {
	p, err := s.Get(ctx, ac, projectID)
	if err != nil {
		return nil, err
	}

	for _, id := range []string{deref(p.ManagerID), p.OwnerID} {
		if id == "" {
			continue
		}
		user, err := companyUser(ctx, s.repo, ac.CompanyID, id)
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &model.UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
	}
	return &model.UserSummary{ID: "", Name: "Unassigned"}, nil
}

// Tasks lists the project's tasks.
func (s *ProjectService) Tasks(ctx context.Context, ac *model.AuthContext, projectID string) ([]*model.Task, error) {
	if _, err := s.Get(ctx, ac, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx, repository.TaskFilter{CompanyID: ac.CompanyID, ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

// canManage reports whether the caller may change the project.
func (s *ProjectService) canManage(ctx context.Context, ac *model.AuthContext, p *model.Project) (bool, error) {
	return canManageProject(ctx, s.repo, ac, p)
}

func canManageProject(ctx context.Context, repo *repository.Repository, ac *model.AuthContext, p *model.Project) (bool, error) {
	if isAdmin(ac) || p.OwnerID == ac.UserID || deref(p.ManagerID) == ac.UserID {
		return true, nil
	}
	role, err := repo.GetProjectMemberRole(ctx, p.ID, ac.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return role == model.ProjectRoleOwner || role == model.ProjectRoleManager, nil
}

func checkDateOrder(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return ErrInvalidDateRange
	}
	return nil
}
