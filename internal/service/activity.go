package service

import (
	"context"
	"fmt"

	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ActivityService reads the company activity feed.
type ActivityService struct {
	repo *repository.Repository
}

// NewActivityService creates a new ActivityService.
func NewActivityService(repo *repository.Repository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Recent returns the company's latest activity, newest first.
func (s *ActivityService) Recent(ctx context.Context, ac *model.AuthContext, limit int) ([]*model.ActivityLog, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}
	items, err := s.repo.ListActivity(ctx, ac.CompanyID, clampPage(limit, defaultActivityLimit, maxActivityLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	if items == nil {
		items = []*model.ActivityLog{}
	}
	return items, nil
}
