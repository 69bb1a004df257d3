package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/commandgrid/pmt/internal/model"
)

// AuditFilter defines filters for listing audit rows.
type AuditFilter struct {
	CompanyID string
	Action    string
	Page      int
	Limit     int
}

// KeyCount is an aggregated count grouped by a string key.
type KeyCount struct {
	Key   string
	Count int
}

// CreateAuditLog appends an audit row.
func (r *Repository) CreateAuditLog(ctx context.Context, a *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, company_id, user_id, action, target_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.CompanyID, a.UserID, a.Action, a.TargetID, a.IPAddress, a.UserAgent, a.Details.String(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns one page of a company's audit rows, newest first, and the total count.
func (r *Repository) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]*model.AuditLog, int, error) {
	limit := clampLimit(filter.Limit, 20, 100)
	page := filter.Page
	if page < 1 {
		page = 1
	}

	where := ` WHERE a.company_id = $1`
	args := []any{filter.CompanyID}
	if filter.Action != "" {
		where += ` AND a.action = $2`
		args = append(args, filter.Action)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := `
		SELECT a.id, a.company_id, a.user_id, u.name, a.action, a.target_id, a.ip_address, a.user_agent, a.details, a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id` + where +
		fmt.Sprintf(` ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*model.AuditLog{}
	for rows.Next() {
		var (
			a       model.AuditLog
			details []byte
		)
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.UserID, &a.UserName, &a.Action, &a.TargetID,
			&a.IPAddress, &a.UserAgent, &details, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		a.Details = details
		logs = append(logs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return logs, total, nil
}

// FailedLoginsByIP counts a company's failed logins since the given time, grouped by IP.
// Failures for unknown emails carry no company; they are counted for any IP
// that also failed against this company in the window, so spraying that mixes
// real and made-up addresses is seen in full.
func (r *Repository) FailedLoginsByIP(ctx context.Context, companyID string, since time.Time, min int) ([]KeyCount, error) {
	query := `
		SELECT ip_address, COUNT(*)
		FROM audit_logs
		WHERE action = $2 AND created_at >= $3 AND ip_address IS NOT NULL
		  AND (company_id = $1 OR (company_id IS NULL AND ip_address IN (
			SELECT ip_address FROM audit_logs
			WHERE company_id = $1 AND action = $2 AND created_at >= $3 AND ip_address IS NOT NULL)))
		GROUP BY ip_address
		HAVING COUNT(*) >= $4
		ORDER BY COUNT(*) DESC, ip_address
	`
	return r.queryKeyCounts(ctx, query, companyID, model.AuditLoginFailed, since, min)
}

// ImpersonationsByAdmin counts impersonation starts since the given time, grouped by admin.
func (r *Repository) ImpersonationsByAdmin(ctx context.Context, companyID string, since time.Time, min int) ([]KeyCount, error) {
	query := `
		SELECT user_id, COUNT(*)
		FROM audit_logs
		WHERE company_id = $1 AND action = $2 AND created_at >= $3 AND user_id IS NOT NULL
		GROUP BY user_id
		HAVING COUNT(*) >= $4
		ORDER BY COUNT(*) DESC, user_id
	`
	return r.queryKeyCounts(ctx, query, companyID, model.AuditImpersonationStart, since, min)
}

func (r *Repository) queryKeyCounts(ctx context.Context, query string, args ...any) ([]KeyCount, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit logs: %w", err)
	}
	defer rows.Close()

	var out []KeyCount
	for rows.Next() {
		var kc KeyCount
		if err := rows.Scan(&kc.Key, &kc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan audit aggregate: %w", err)
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}
