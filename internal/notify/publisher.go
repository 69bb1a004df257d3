package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/commandgrid/pmt/internal/model"
)

// Creator persists notifications. The pgx repository satisfies it.
type Creator interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Publisher writes notifications into the outbox for the worker to deliver.
type Publisher struct {
	repo        Creator
	logger      *slog.Logger
	maxAttempts int
}

// NewPublisher creates a new notification publisher.
func NewPublisher(repo Creator, logger *slog.Logger, maxAttempts int) *Publisher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Publisher{
		repo:        repo,
		logger:      logger.With("component", "notify.publisher"),
		maxAttempts: maxAttempts,
	}
}

// Prepare fills defaults on n: id, channel, priority and delivery scheduling.
func (p *Publisher) Prepare(n *model.Notification) {
	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = ulid.Make().String()
	}
	if n.Channel == "" {
		n.Channel = model.ChannelEmail
	}
	if n.Priority < model.PriorityLevelMin || n.Priority > model.PriorityLevelMax {
		n.Priority = model.PriorityLevelDefault
	}
	if n.Type == "" {
		n.Type = model.NotificationGeneric
	}
	n.DeliveryStatus = model.DeliveryPending
	if n.Channel != model.ChannelEmail {
		// Only email goes through the outbox; other channels are read in-app.
		n.DeliveryStatus = model.DeliverySent
	}
	n.MaxAttempts = p.maxAttempts
	n.NextAttemptAt = now
	n.CreatedAt = now
}

// Enqueue stores n after filling defaults.
func (p *Publisher) Enqueue(ctx context.Context, n *model.Notification) error {
	p.Prepare(n)
	if err := p.repo.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	p.logger.Debug("notification enqueued",
		"notification_id", n.ID,
		"type", n.Type,
		"channel", n.Channel,
	)
	return nil
}

// enqueueQuietly stores n and logs failures. Notification side effects never fail the caller.
func (p *Publisher) enqueueQuietly(ctx context.Context, n *model.Notification) {
	if err := p.Enqueue(ctx, n); err != nil {
		p.logger.Warn("failed to enqueue notification",
			"type", n.Type,
			"user_id", n.UserID,
			"error", err,
		)
	}
}

// Welcome queues the welcome email for a new account.
func (p *Publisher) Welcome(ctx context.Context, user *model.User) {
	p.enqueueQuietly(ctx, &model.Notification{
		UserID:   user.ID,
		Type:     model.NotificationWelcome,
		Title:    "Welcome to PMT",
		Message:  fmt.Sprintf("Your username is %s.", user.Username),
		Priority: 3,
	})
}

// TaskAssigned queues the assignment email for the task's assignee.
func (p *Publisher) TaskAssigned(ctx context.Context, task *model.Task, projectName, assignerName string) {
	if task.AssigneeID == nil {
		return
	}
	meta := map[string]any{
		"taskId":       task.ID,
		"taskTitle":    task.Title,
		"taskPriority": task.Priority,
		"projectName":  projectName,
		"assignerName": assignerName,
		"description":  task.Description,
	}
	if task.DueDate != nil {
		meta["dueDate"] = task.DueDate.Format("2006-01-02")
	}
	if task.EstimatedHours != nil {
		meta["estimatedHours"] = *task.EstimatedHours
	}
	p.enqueueQuietly(ctx, &model.Notification{
		UserID:   *task.AssigneeID,
		Type:     model.NotificationTaskAssignment,
		Title:    task.Title,
		Message:  fmt.Sprintf("You have been assigned %q.", task.Title),
		Priority: priorityLevel(task.Priority),
		Metadata: model.MustJSON(meta),
	})
}

// DeadlineReminder queues a reminder for the task's assignee. kind is
// "upcoming", "today" or "overdue".
func (p *Publisher) DeadlineReminder(ctx context.Context, task *model.Task, projectName, kind string) {
	if task.AssigneeID == nil || task.DueDate == nil {
		return
	}
	p.enqueueQuietly(ctx, &model.Notification{
		UserID:   *task.AssigneeID,
		Type:     model.NotificationDeadlineReminder,
		Title:    task.Title,
		Message:  fmt.Sprintf("%q is due %s.", task.Title, task.DueDate.Format("2006-01-02")),
		Priority: priorityLevel(task.Priority),
		Metadata: model.MustJSON(map[string]any{
			"taskId":       task.ID,
			"taskTitle":    task.Title,
			"taskPriority": task.Priority,
			"projectName":  projectName,
			"dueDate":      task.DueDate.Format("2006-01-02"),
			"reminderType": kind,
		}),
	})
}

// MeetingInvitation queues an invitation for each user in userIDs.
func (p *Publisher) MeetingInvitation(ctx context.Context, meeting *model.Meeting, hostName string, userIDs []string) {
	for _, userID := range userIDs {
		if userID == meeting.HostID {
			continue
		}
		p.enqueueQuietly(ctx, &model.Notification{
			UserID:   userID,
			Type:     model.NotificationMeetingInvitation,
			Title:    meeting.Title,
			Message:  meeting.Description,
			Priority: model.PriorityLevelDefault,
			Metadata: model.MustJSON(map[string]any{
				"meetingId":    meeting.ID,
				"meetingTitle": meeting.Title,
				"startsAt":     meeting.StartsAt.UTC().Format("2006-01-02 15:04 MST"),
				"hostName":     hostName,
			}),
		})
	}
}

// priorityLevel maps task priority names onto notification priority levels.
func priorityLevel(taskPriority string) int {
	switch taskPriority {
	case model.PriorityHigh:
		return 3
	case model.PriorityLow:
		return 1
	default:
		return model.PriorityLevelDefault
	}
}
