package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

var notificationChannels = []string{model.ChannelEmail, model.ChannelPush, model.ChannelInApp}

// NotificationService manages a user's notifications and delivery preferences.
type NotificationService struct {
	repo     *repository.Repository
	notifier Notifier
	logger   *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo *repository.Repository, notifier Notifier, logger *slog.Logger) *NotificationService {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{repo: repo, notifier: notifier, logger: logger.With("component", "service.notification")}
}

// CreateNotificationInput defines input for creating a notification.
type CreateNotificationInput struct {
	UserID   string
	Type     string
	Title    string
	Message  string
	Priority int
	Channel  string
	Metadata model.RawJSON
}

// Create queues a notification. Targeting another user requires Admin or Manager.
func (s *NotificationService) Create(ctx context.Context, ac *model.AuthContext, input CreateNotificationInput) (*model.Notification, error) {
	target := input.UserID
	if target == "" {
		target = ac.UserID
	}
	if target != ac.UserID {
		if !ac.HasRole(model.RoleManager) {
			return nil, ErrForbidden
		}
		if _, err := companyUser(ctx, s.repo, ac.CompanyID, target); err != nil {
			return nil, err
		}
	}
	if input.Channel != "" && !slices.Contains(notificationChannels, input.Channel) {
		return nil, ErrInvalidChannel
	}

	n := &model.Notification{
		UserID:   target,
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
		Priority: input.Priority,
		Channel:  input.Channel,
		Metadata: input.Metadata,
	}
	if err := s.notifier.Enqueue(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.logger.Info("notification_created", "notification_id", n.ID, "user_id", target, "channel", n.Channel)
	return n, nil
}

// NotificationList is a page of notifications with the unread total.
type NotificationList struct {
	Notifications []*model.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) (*NotificationList, error) {
	limit = clampPage(limit, defaultNotificationLimit, maxNotificationLimit)
	items, err := s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	if items == nil {
		items = []*model.Notification{}
	}
	return &NotificationList{Notifications: items, UnreadCount: unread}, nil
}

// Get returns one of the caller's notifications.
func (s *NotificationService) Get(ctx context.Context, userID, id string) (*model.Notification, error) {
	n, err := s.repo.GetNotification(ctx, userID, id)
	if err != nil {
		return nil, mapNotificationError(err, "failed to get notification")
	}
	return n, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkNotificationRead(ctx, userID, id); err != nil {
		return mapNotificationError(err, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every unread notification as read and returns the count.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// Delete removes one notification.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteNotification(ctx, userID, id); err != nil {
		return mapNotificationError(err, "failed to delete notification")
	}
	return nil
}

// DeleteAll removes every notification of the user and returns the count.
func (s *NotificationService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteAllNotifications(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return n, nil
}

// Preferences returns the stored preferences or the defaults.
func (s *NotificationService) Preferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	prefs, err := s.repo.GetNotificationPreferences(ctx, userID)
	if errors.Is(err, repository.ErrPreferencesNotFound) {
		return model.DefaultNotificationPreferences(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// PreferencesInput holds optional preference changes.
type PreferencesInput struct {
	EnableEmail      *bool
	EnablePush       *bool
	EnableSMS        *bool
	MinPriorityLevel *int
	MutedTypes       *[]string
}

// UpdatePreferences merges input into the current preferences.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, input PreferencesInput) (*model.NotificationPreferences, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.EnableEmail != nil {
		prefs.EnableEmail = *input.EnableEmail
	}
	if input.EnablePush != nil {
		prefs.EnablePush = *input.EnablePush
	}
	if input.EnableSMS != nil {
		prefs.EnableSMS = *input.EnableSMS
	}
	if input.MinPriorityLevel != nil {
		level := *input.MinPriorityLevel
		if level < model.PriorityLevelMin || level > model.PriorityLevelMax {
			return nil, ErrInvalidPriority
		}
		prefs.MinPriorityLevel = level
	}
	if input.MutedTypes != nil {
		prefs.MutedTypes = uniqueStrings(*input.MutedTypes)
	}

	if err := s.repo.UpsertNotificationPreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return prefs, nil
}

func mapNotificationError(err error, msg string) error {
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return ErrNotificationNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// clampPage bounds a page size to [1, max], using def for non-positive input.
func clampPage(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
