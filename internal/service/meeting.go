package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

const (
	meetingDateLayout      = "2006-01-02"
	meetingTimeLayout      = "15:04"
	defaultMeetingDuration = 60
	channelPrefix          = "pmt-"
)

// VideoIssuer signs media channel tokens. Implemented by auth.VideoTokenIssuer.
type VideoIssuer interface {
	AppID() string
	Issue(channel, uid string) (string, time.Time, error)
}

// MeetingService schedules meetings and issues video tokens.
type MeetingService struct {
	repo     *repository.Repository
	video    VideoIssuer
	notifier Notifier
	activity activity.Emitter
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewMeetingService creates a new MeetingService.
func NewMeetingService(
	repo *repository.Repository,
	video VideoIssuer,
	notifier Notifier,
	emitter activity.Emitter,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *MeetingService {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if emitter == nil {
		emitter = activity.Discard{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MeetingService{
		repo:     repo,
		video:    video,
		notifier: notifier,
		activity: emitter,
		metrics:  recorder,
		logger:   logger.With("component", "service.meeting"),
	}
}

// ParseDateFilter parses "gte.YYYY-MM-DD", "lt.YYYY-MM-DD" or "YYYY-MM-DD".
// An empty value yields a nil filter.
func ParseDateFilter(value string) (*repository.DateFilter, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	op := repository.DateOpEqual
	if prefix, rest, ok := strings.Cut(value, "."); ok {
		switch prefix {
		case repository.DateOpGreaterOrEq, repository.DateOpLess:
			op = prefix
		default:
			return nil, ErrInvalidDateFilter
		}
		value = rest
	}

	day, err := time.Parse(meetingDateLayout, value)
	if err != nil {
		return nil, ErrInvalidDateFilter
	}
	return &repository.DateFilter{Op: op, Day: day}, nil
}

// scheduleTime combines optional date and time strings, defaulting each part to now.
func scheduleTime(date, clock string, now time.Time) (time.Time, error) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date != "" {
		d, err := time.Parse(meetingDateLayout, date)
		if err != nil {
			return time.Time{}, ErrInvalidDateTime
		}
		day = d
	}

	offset := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute
	if clock != "" {
		c, err := time.Parse(meetingTimeLayout, clock)
		if err != nil {
			return time.Time{}, ErrInvalidDateTime
		}
		offset = time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute
	}
	return day.Add(offset), nil
}

// List returns the caller's meetings ordered by start time.
func (s *MeetingService) List(ctx context.Context, ac *model.AuthContext) ([]*model.Meeting, error) {
	meetings, err := s.repo.ListMeetingsForUser(ctx, ac.CompanyID, ac.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	if meetings == nil {
		meetings = []*model.Meeting{}
	}
	return meetings, nil
}

// Count counts the caller's meetings matching a date filter expression.
func (s *MeetingService) Count(ctx context.Context, ac *model.AuthContext, date string) (int, error) {
	filter, err := ParseDateFilter(date)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.CountMeetingsForUser(ctx, ac.CompanyID, ac.UserID, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count meetings: %w", err)
	}
	return n, nil
}

// CreateMeetingInput defines input for scheduling a meeting.
type CreateMeetingInput struct {
	Title           string
	Description     string
	Date            string
	Time            string
	DurationMinutes int
	Context         string
	ProjectID       string
	ParticipantIDs  []string
}

// Create schedules a meeting hosted by the caller and invites participants.
func (s *MeetingService) Create(ctx context.Context, ac *model.AuthContext, input CreateMeetingInput) (*model.Meeting, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}

	meetingContext := input.Context
	if meetingContext == "" {
		meetingContext = model.MeetingContextCompany
	}
	if !model.IsValidMeetingContext(meetingContext) {
		return nil, ErrInvalidContext
	}

	now := time.Now().UTC()
	startsAt, err := scheduleTime(input.Date, input.Time, now)
	if err != nil {
		return nil, err
	}
	duration := input.DurationMinutes
	if duration <= 0 {
		duration = defaultMeetingDuration
	}

	if input.ProjectID != "" {
		if _, err := s.repo.GetProject(ctx, ac.CompanyID, input.ProjectID); err != nil {
			if errors.Is(err, repository.ErrProjectNotFound) {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("failed to get project: %w", err)
		}
	}

	participants := uniqueStrings(input.ParticipantIDs)
	if err := checkCompanyUsers(ctx, s.repo, ac.CompanyID, participants); err != nil {
		return nil, err
	}

	id := generateULID()
	meeting := &model.Meeting{
		ID:              id,
		CompanyID:       ac.CompanyID,
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		HostID:          ac.UserID,
		StartsAt:        startsAt,
		DurationMinutes: duration,
		Context:         meetingContext,
		ProjectID:       optional(input.ProjectID),
		ChannelName:     channelPrefix + id,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	invited := make([]string, 0, len(participants))
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateMeeting(ctx, meeting); err != nil {
			return err
		}
		if _, err := tx.AddMeetingParticipant(ctx, id, ac.UserID, model.ParticipantHost); err != nil {
			return err
		}
		for _, userID := range participants {
			if userID == ac.UserID {
				continue
			}
			if _, err := tx.AddMeetingParticipant(ctx, id, userID, model.ParticipantUser); err != nil {
				return err
			}
			invited = append(invited, userID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}
	meeting.ParticipantCount = len(invited) + 1

	host := s.hostName(ctx, ac.UserID)
	meeting.HostName = host
	s.metrics.IncMeetingCreated()
	emit(s.activity, ac, EntityMeeting, id, "created", map[string]any{"title": meeting.Title, "startsAt": startsAt})
	if len(invited) > 0 {
		s.notifier.MeetingInvitation(ctx, meeting, host, invited)
	}
	s.logger.Info("meeting_created", "meeting_id", id, "participants", meeting.ParticipantCount)
	return meeting, nil
}

// Get returns a company meeting.
func (s *MeetingService) Get(ctx context.Context, ac *model.AuthContext, id string) (*model.Meeting, error) {
	m, err := s.repo.GetMeeting(ctx, ac.CompanyID, id)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// UpdateMeetingInput holds optional meeting changes.
type UpdateMeetingInput struct {
	Title           *string
	Description     *string
	Date            *string
	Time            *string
	DurationMinutes *int
	Context         *string
}

// Update changes a meeting. Only participants may edit it.
func (s *MeetingService) Update(ctx context.Context, ac *model.AuthContext, id string, input UpdateMeetingInput) (*model.Meeting, error) {
	m, err := s.Get(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, m, ac.UserID); err != nil {
		return nil, err
	}

	if input.Title != nil {
		m.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		m.Description = *input.Description
	}
	if input.Date != nil || input.Time != nil {
		date := m.StartsAt.UTC().Format(meetingDateLayout)
		clock := m.StartsAt.UTC().Format(meetingTimeLayout)
		if input.Date != nil {
			date = *input.Date
		}
		if input.Time != nil {
			clock = *input.Time
		}
		if m.StartsAt, err = scheduleTime(date, clock, time.Now()); err != nil {
			return nil, err
		}
	}
	if input.DurationMinutes != nil && *input.DurationMinutes > 0 {
		m.DurationMinutes = *input.DurationMinutes
	}
	if input.Context != nil {
		if !model.IsValidMeetingContext(*input.Context) {
			return nil, ErrInvalidContext
		}
		m.Context = *input.Context
	}
	m.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateMeeting(ctx, m); err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to update meeting: %w", err)
	}

	emit(s.activity, ac, EntityMeeting, id, "updated", map[string]string{"title": m.Title})
	return m, nil
}

// Delete removes a meeting. Only the host may delete it.
func (s *MeetingService) Delete(ctx context.Context, ac *model.AuthContext, id string) error {
	m, err := s.Get(ctx, ac, id)
	if err != nil {
		return err
	}
	if m.HostID != ac.UserID {
		return ErrForbidden
	}

	if err := s.repo.DeleteMeeting(ctx, ac.CompanyID, id); err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return ErrMeetingNotFound
		}
		return fmt.Errorf("failed to delete meeting: %w", err)
	}

	emit(s.activity, ac, EntityMeeting, id, "deleted", nil)
	s.logger.Info("meeting_deleted", "meeting_id", id)
	return nil
}

// Join adds the caller as a participant. Joining twice is a no-op.
func (s *MeetingService) Join(ctx context.Context, ac *model.AuthContext, id string) (bool, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return false, err
	}
	inserted, err := s.repo.AddMeetingParticipant(ctx, id, ac.UserID, model.ParticipantUser)
	if err != nil {
		return false, fmt.Errorf("failed to join meeting: %w", err)
	}
	if inserted {
		emit(s.activity, ac, EntityMeeting, id, "joined", nil)
	}
	return inserted, nil
}

// Leave removes the caller from a meeting. The host cannot leave.
func (s *MeetingService) Leave(ctx context.Context, ac *model.AuthContext, id string) error {
	m, err := s.Get(ctx, ac, id)
	if err != nil {
		return err
	}
	if m.HostID == ac.UserID {
		return ErrHostCannotLeave
	}
	if err := s.repo.RemoveMeetingParticipant(ctx, id, ac.UserID); err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return ErrNotMember
		}
		return fmt.Errorf("failed to leave meeting: %w", err)
	}
	emit(s.activity, ac, EntityMeeting, id, "left", nil)
	return nil
}

// Participants lists a meeting's participants.
func (s *MeetingService) Participants(ctx context.Context, ac *model.AuthContext, id string) ([]*model.MeetingParticipant, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return nil, err
	}
	participants, err := s.repo.ListMeetingParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	if participants == nil {
		participants = []*model.MeetingParticipant{}
	}
	return participants, nil
}

// AddParticipants invites company users. Every id must belong to the company.
// It returns the number of newly added participants.
func (s *MeetingService) AddParticipants(ctx context.Context, ac *model.AuthContext, id string, userIDs []string) (int, error) {
	m, err := s.Get(ctx, ac, id)
	if err != nil {
		return 0, err
	}
	userIDs = uniqueStrings(userIDs)
	if err := checkCompanyUsers(ctx, s.repo, ac.CompanyID, userIDs); err != nil {
		return 0, err
	}

	var added []string
	for _, userID := range userIDs {
		inserted, err := s.repo.AddMeetingParticipant(ctx, id, userID, model.ParticipantUser)
		if err != nil {
			return len(added), fmt.Errorf("failed to add participant: %w", err)
		}
		if inserted {
			added = append(added, userID)
		}
	}

	if len(added) > 0 {
		s.notifier.MeetingInvitation(ctx, m, s.hostName(ctx, m.HostID), added)
		emit(s.activity, ac, EntityMeeting, id, "participants_added", map[string]any{"userIds": added})
	}
	return len(added), nil
}

// VideoToken issues a media token for the meeting channel.
func (s *MeetingService) VideoToken(ctx context.Context, ac *model.AuthContext, id, channelName, uid string) (*model.VideoToken, error) {
	if _, err := s.Get(ctx, ac, id); err != nil {
		return nil, err
	}
	if s.video == nil {
		return nil, ErrVideoNotConfigured
	}

	token, expiresAt, err := s.video.Issue(channelName, uid)
	if err != nil {
		if errors.Is(err, auth.ErrVideoNotConfigured) {
			s.logger.Error("video_not_configured", "meeting_id", id)
			return nil, ErrVideoNotConfigured
		}
		return nil, fmt.Errorf("failed to issue video token: %w", err)
	}
	return &model.VideoToken{
		Token:       token,
		AppID:       s.video.AppID(),
		ChannelName: channelName,
		UID:         uid,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *MeetingService) requireParticipant(ctx context.Context, m *model.Meeting, userID string) error {
	if m.HostID == userID {
		return nil
	}
	ok, err := s.repo.IsMeetingParticipant(ctx, m.ID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *MeetingService) hostName(ctx context.Context, userID string) string {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Name
}
