package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/commandgrid/pmt/internal/model"
)

// CompanyStats holds headline counts for the admin dashboard.
type CompanyStats struct {
	Users            int            `json:"users"`
	Projects         int            `json:"projects"`
	TasksByStatus    map[string]int `json:"tasksByStatus"`
	UpcomingMeetings int            `json:"upcomingMeetings"`
	ChatRooms        int            `json:"chatRooms"`
	AITokensToday    int64          `json:"aiTokensToday"`
}

// GetCompanyStats collects dashboard counts for a company as of now.
func (r *Repository) GetCompanyStats(ctx context.Context, companyID string, now time.Time) (*CompanyStats, error) {
	stats := &CompanyStats{TasksByStatus: make(map[string]int, len(model.TaskStatuses))}
	for _, s := range model.TaskStatuses {
		stats.TasksByStatus[s] = 0
	}

	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE company_id = $1),
			(SELECT COUNT(*) FROM projects WHERE company_id = $1),
			(SELECT COUNT(*) FROM meetings WHERE company_id = $1 AND starts_at >= $2),
			(SELECT COUNT(*) FROM chat_rooms WHERE company_id = $1)
	`, companyID, now).Scan(&stats.Users, &stats.Projects, &stats.UpcomingMeetings, &stats.ChatRooms)
	if err != nil {
		return nil, fmt.Errorf("failed to count company stats: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT t.status, COUNT(*)
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE p.company_id = $1
		GROUP BY t.status`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		stats.TasksByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task counts: %w", err)
	}

	stats.AITokensToday, err = r.SumCompanyAITokens(ctx, companyID, now)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
