package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

// Notifier queues user-facing notifications. Implemented by notify.Publisher.
type Notifier interface {
	Enqueue(ctx context.Context, n *model.Notification) error
	Welcome(ctx context.Context, user *model.User)
	TaskAssigned(ctx context.Context, task *model.Task, projectName, assignerName string)
	DeadlineReminder(ctx context.Context, task *model.Task, projectName, kind string)
	MeetingInvitation(ctx context.Context, meeting *model.Meeting, hostName string, userIDs []string)
}

type discardNotifier struct{}

func (discardNotifier) Enqueue(context.Context, *model.Notification) error { return nil }

func (discardNotifier) Welcome(context.Context, *model.User) {}

func (discardNotifier) TaskAssigned(context.Context, *model.Task, string, string) {}

func (discardNotifier) DeadlineReminder(context.Context, *model.Task, string, string) {}

func (discardNotifier) MeetingInvitation(context.Context, *model.Meeting, string, []string) {}

// RequestMeta identifies the client of a request for audit rows.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func generateULID() string {
	return ulid.Make().String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// auditor appends audit rows. Failures are logged, never returned: an audit
// outage must not block logins.
type auditor struct {
	repo   *repository.Repository
	logger *slog.Logger
}

func (a auditor) record(ctx context.Context, companyID, userID, action, targetID string, meta RequestMeta, details any) {
	row := &model.AuditLog{
		ID:        generateULID(),
		CompanyID: optional(companyID),
		UserID:    optional(userID),
		Action:    action,
		TargetID:  optional(targetID),
		IPAddress: optional(meta.IP),
		UserAgent: optional(meta.UserAgent),
		CreatedAt: time.Now().UTC(),
	}
	if details != nil {
		row.Details = model.MustJSON(details)
	}
	if err := a.repo.CreateAuditLog(ctx, row); err != nil {
		a.logger.Warn("audit_write_failed", "action", action, "error", err)
	}
}

// Activity entity types.
const (
	EntityProject = "project"
	EntityTask    = "task"
	EntityMeeting = "meeting"
	EntityChat    = "chat"
	EntityTeam    = "team"
	EntityEvent   = "calendar_event"
)

// emit publishes an activity event for the caller. Users outside a company
// have no activity stream.
func emit(e activity.Emitter, ac *model.AuthContext, entityType, entityID, action string, details any) {
	if e == nil || ac.CompanyID == "" {
		return
	}
	e.PublishAsync(activity.NewEvent(ac.CompanyID, ac.UserID, entityType, entityID, action, details))
}

// requireCompany rejects callers that do not belong to a company.
func requireCompany(ac *model.AuthContext) error {
	if ac.CompanyID == "" {
		return ErrForbidden
	}
	return nil
}

func isAdmin(ac *model.AuthContext) bool {
	return ac.HasRole(model.RoleAdmin)
}

func companyUser(ctx context.Context, repo *repository.Repository, companyID, userID string) (*model.User, error) {
	user, err := repo.GetCompanyUser(ctx, companyID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// invalidIDs returns the ids missing from valid, preserving order.
func invalidIDs(ids, valid []string) []string {
	ok := make(map[string]bool, len(valid))
	for _, id := range valid {
		ok[id] = true
	}
	var out []string
	for _, id := range ids {
		if !ok[id] {
			out = append(out, id)
		}
	}
	return out
}

// uniqueStrings drops empty and repeated values, preserving order.
func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// checkCompanyUsers verifies every id belongs to the company.
func checkCompanyUsers(ctx context.Context, repo *repository.Repository, companyID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	valid, err := repo.FilterCompanyUserIDs(ctx, companyID, ids)
	if err != nil {
		return fmt.Errorf("failed to check users: %w", err)
	}
	if bad := invalidIDs(ids, valid); len(bad) > 0 {
		return &InvalidIDsError{IDs: bad}
	}
	return nil
}
