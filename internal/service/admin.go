package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/cache"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

// Threat detection thresholds over the lookback window.
const (
	threatWindow           = 24 * time.Hour
	bruteForceThreshold    = 5
	impersonationThreshold = 3
)

// Threat kinds and severities.
const (
	ThreatBruteForce         = "brute_force"
	ThreatImpersonationSpike = "impersonation_spike"
	SeverityHigh             = "high"
	SeverityMedium           = "medium"
)

// StreamLengther reports the backlog of the activity stream.
type StreamLengther interface {
	StreamLength(ctx context.Context) (int64, error)
}

// AdminService implements company administration.
type AdminService struct {
	repo      *repository.Repository
	cache     *cache.Cache
	tokens    *auth.TokenManager
	stream    StreamLengther
	audit     auditor
	logger    *slog.Logger
	startedAt time.Time
}

// NewAdminService creates a new AdminService. stream may be nil.
func NewAdminService(repo *repository.Repository, cache *cache.Cache, tokens *auth.TokenManager, stream StreamLengther, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "service.admin")
	return &AdminService{
		repo:      repo,
		cache:     cache,
		tokens:    tokens,
		stream:    stream,
		audit:     auditor{repo: repo, logger: logger},
		logger:    logger,
		startedAt: time.Now(),
	}
}

// ListUsers returns the users of a company.
func (s *AdminService) ListUsers(ctx context.Context, companyID string) ([]*model.User, error) {
	users, err := s.repo.ListUsersByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUserRole changes a company user's role.
func (s *AdminService) UpdateUserRole(ctx context.Context, ac *model.AuthContext, userID, role string, meta RequestMeta) (*model.User, error) {
	if !model.IsAssignableRole(role) {
		return nil, ErrInvalidRole
	}
	if err := s.repo.UpdateUserRole(ctx, ac.CompanyID, userID, role, role == model.RoleAdmin); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.audit.record(ctx, ac.CompanyID, ac.UserID, model.AuditRoleChanged, userID, meta, map[string]string{"role": role})
	s.logger.Info("user_role_changed", "user_id", userID, "role", role, "by", ac.UserID)
	return companyUser(ctx, s.repo, ac.CompanyID, userID)
}

// DeleteUser removes a company user other than the caller.
func (s *AdminService) DeleteUser(ctx context.Context, ac *model.AuthContext, userID string, meta RequestMeta) error {
	if userID == ac.UserID {
		return ErrSelfAction
	}
	if err := s.repo.DeleteUser(ctx, ac.CompanyID, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.audit.record(ctx, ac.CompanyID, ac.UserID, model.AuditUserDeleted, userID, meta, nil)
	s.logger.Info("user_deleted", "user_id", userID, "by", ac.UserID)
	return nil
}

// ImpersonationResult is a short-lived token for acting as another user.
type ImpersonationResult struct {
	AuthToken      string      `json:"authToken"`
	User           SessionUser `json:"user"`
	ImpersonatedBy string      `json:"impersonatedBy"`
	ExpiresAt      time.Time   `json:"expiresAt"`
}

// Impersonate issues an access token for targetID on behalf of the calling admin.
func (s *AdminService) Impersonate(ctx context.Context, ac *model.AuthContext, targetID string, meta RequestMeta) (*ImpersonationResult, error) {
	if ac.IsImpersonating() {
		return nil, ErrForbidden
	}
	if targetID == ac.UserID {
		return nil, ErrSelfAction
	}

	target, err := s.repo.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if target.CompanyIDValue() != ac.CompanyID {
		return nil, ErrForbidden
	}

	token, expiresAt, err := s.tokens.IssueImpersonation(auth.SubjectFromUser(target, ""), ac.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue impersonation token: %w", err)
	}

	s.audit.record(ctx, ac.CompanyID, ac.UserID, model.AuditImpersonationStart, target.ID, meta, nil)
	s.logger.Info("impersonation_started", "admin_id", ac.UserID, "target_id", target.ID)

	return &ImpersonationResult{
		AuthToken:      token,
		User:           newSessionUser(target, ""),
		ImpersonatedBy: ac.UserID,
		ExpiresAt:      expiresAt,
	}, nil
}

// EndImpersonation revokes the impersonation token and signs the admin back in.
func (s *AdminService) EndImpersonation(ctx context.Context, ac *model.AuthContext, meta RequestMeta) (*LoginResult, error) {
	if !ac.IsImpersonating() {
		return nil, ErrNotImpersonating
	}

	admin, err := s.repo.GetUserByID(ctx, ac.ImpersonatedBy)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}

	if err := s.cache.RevokeToken(ctx, ac.TokenID, ac.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to revoke impersonation token: %w", err)
	}

	pair, err := s.tokens.IssuePair(auth.SubjectFromUser(admin, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	if err := s.repo.RecordLogin(ctx, admin.ID, pair.RefreshToken, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	s.audit.record(ctx, ac.CompanyID, admin.ID, model.AuditImpersonationEnd, ac.UserID, meta, nil)
	s.logger.Info("impersonation_ended", "admin_id", admin.ID, "target_id", ac.UserID)
	return &LoginResult{TokenPair: pair, User: newSessionUser(admin, "")}, nil
}

// Pagination describes an offset page.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// AuditPage is one page of audit rows.
type AuditPage struct {
	Audits     []*model.AuditLog `json:"audits"`
	Pagination Pagination        `json:"pagination"`
}

// AuditLogs returns a page of the company's audit rows, newest first.
func (s *AdminService) AuditLogs(ctx context.Context, companyID string, page, limit int, action string) (*AuditPage, error) {
	page, limit = normalizePage(page, limit)
	logs, total, err := s.repo.ListAuditLogs(ctx, repository.AuditFilter{
		CompanyID: companyID,
		Action:    action,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return &AuditPage{Audits: logs, Pagination: newPagination(page, limit, total)}, nil
}

// normalizePage clamps page to >= 1 and limit to 1..100 (default 20).
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	return page, limit
}

func newPagination(page, limit, total int) Pagination {
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// Stats returns company dashboard counts.
func (s *AdminService) Stats(ctx context.Context, companyID string) (*repository.CompanyStats, error) {
	stats, err := s.repo.GetCompanyStats(ctx, companyID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// RoleInfo describes an assignable role.
type RoleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Assignable  bool   `json:"assignable"`
}

// Roles returns the role catalogue.
func (s *AdminService) Roles() []RoleInfo {
	return []RoleInfo{
		{Name: model.RoleAdmin, Description: "Full access to company administration, users and security tools", Assignable: true},
		{Name: model.RoleManager, Description: "Manages projects, teams and notifications for other users", Assignable: true},
		{Name: model.RoleProjectManager, Description: "Plans projects and coordinates their members", Assignable: true},
		{Name: model.RoleDeveloper, Description: "Works on assigned tasks", Assignable: true},
		{Name: model.RoleMember, Description: "Default role with access to shared projects and chat", Assignable: true},
		{Name: model.RoleTeamLeader, Description: "Derived for users who lead at least one team", Assignable: false},
	}
}

// Threat is a suspicious pattern found in the audit log.
type Threat struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Subject     string `json:"subject"`
	Count       int    `json:"count"`
	Threshold   int    `json:"threshold"`
	Description string `json:"description"`
}

// Threats derives threats from the company's audit rows in the last 24 hours.
func (s *AdminService) Threats(ctx context.Context, companyID string) ([]Threat, error) {
	since := time.Now().UTC().Add(-threatWindow)

	failed, err := s.repo.FailedLoginsByIP(ctx, companyID, since, bruteForceThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed logins: %w", err)
	}
	imps, err := s.repo.ImpersonationsByAdmin(ctx, companyID, since, impersonationThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count impersonations: %w", err)
	}
	return buildThreats(failed, imps), nil
}

func buildThreats(failedByIP, impersonationsByAdmin []repository.KeyCount) []Threat {
	threats := make([]Threat, 0, len(failedByIP)+len(impersonationsByAdmin))
	for _, kc := range failedByIP {
		if kc.Count < bruteForceThreshold {
			continue
		}
		threats = append(threats, Threat{
			Type:        ThreatBruteForce,
			Severity:    severity(kc.Count, bruteForceThreshold),
			Subject:     kc.Key,
			Count:       kc.Count,
			Threshold:   bruteForceThreshold,
			Description: fmt.Sprintf("%d failed logins from %s in the last 24 hours", kc.Count, kc.Key),
		})
	}
	for _, kc := range impersonationsByAdmin {
		if kc.Count < impersonationThreshold {
			continue
		}
		threats = append(threats, Threat{
			Type:        ThreatImpersonationSpike,
			Severity:    severity(kc.Count, impersonationThreshold),
			Subject:     kc.Key,
			Count:       kc.Count,
			Threshold:   impersonationThreshold,
			Description: fmt.Sprintf("%d impersonation sessions started by %s in the last 24 hours", kc.Count, kc.Key),
		})
	}
	return threats
}

func severity(count, threshold int) string {
	if count >= 2*threshold {
		return SeverityHigh
	}
	return SeverityMedium
}

// ScanSummary counts threats by severity.
type ScanSummary struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// ScanResult is the outcome of a security scan.
type ScanResult struct {
	ScannedAt time.Time   `json:"scannedAt"`
	Threats   []Threat    `json:"threats"`
	Summary   ScanSummary `json:"summary"`
}

// Scan runs threat detection and records the scan.
func (s *AdminService) Scan(ctx context.Context, ac *model.AuthContext, meta RequestMeta) (*ScanResult, error) {
	threats, err := s.Threats(ctx, ac.CompanyID)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{ScannedAt: time.Now().UTC(), Threats: threats, Summary: summarize(threats)}
	s.audit.record(ctx, ac.CompanyID, ac.UserID, model.AuditSecurityScan, "", meta, map[string]int{"findings": len(threats)})
	s.logger.Info("security_scan_completed", "company_id", ac.CompanyID, "findings", len(threats))
	return result, nil
}

func summarize(threats []Threat) ScanSummary {
	sum := ScanSummary{Total: len(threats)}
	for _, t := range threats {
		if t.Severity == SeverityHigh {
			sum.High++
		} else {
			sum.Medium++
		}
	}
	return sum
}

// DependencyHealth is the status of a backing service.
type DependencyHealth struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latencyMs"`
	Error     string  `json:"error,omitempty"`
}

// RuntimeStats are Go runtime figures.
type RuntimeStats struct {
	GoVersion      string `json:"goVersion"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	SysBytes       uint64 `json:"sysBytes"`
	NumGC          uint32 `json:"numGC"`
}

// SystemHealth is the admin view of service health.
type SystemHealth struct {
	Database               DependencyHealth `json:"database"`
	Redis                  DependencyHealth `json:"redis"`
	NotificationQueueDepth int64            `json:"notificationQueueDepth"`
	ActivityStreamLength   int64            `json:"activityStreamLength"`
	UptimeSeconds          int64            `json:"uptimeSeconds"`
	Runtime                RuntimeStats     `json:"runtime"`
}

// SystemHealth probes dependencies and reports runtime figures.
func (s *AdminService) SystemHealth(ctx context.Context) *SystemHealth {
	health := &SystemHealth{
		Database:      probe(ctx, s.repo.Ping),
		Redis:         probe(ctx, s.cache.Ping),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}

	if depth, err := s.repo.CountPendingEmails(ctx); err == nil {
		health.NotificationQueueDepth = depth
	} else {
		s.logger.Warn("queue_depth_failed", "error", err)
	}
	if s.stream != nil {
		if n, err := s.stream.StreamLength(ctx); err == nil {
			health.ActivityStreamLength = n
		} else {
			s.logger.Warn("stream_length_failed", "error", err)
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	health.Runtime = RuntimeStats{
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
	}
	return health
}

func probe(ctx context.Context, ping func(context.Context) error) DependencyHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	h := DependencyHealth{Status: "healthy", LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
	}
	return h
}
