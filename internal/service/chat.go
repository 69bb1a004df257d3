package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

const recentMessageLimit = 100

// ChatService handles chat rooms, messages and reports.
type ChatService struct {
	repo     *repository.Repository
	activity activity.Emitter
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewChatService creates a new ChatService.
func NewChatService(repo *repository.Repository, emitter activity.Emitter, recorder metrics.Recorder, logger *slog.Logger) *ChatService {
	if emitter == nil {
		emitter = activity.Discard{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		repo:     repo,
		activity: emitter,
		metrics:  recorder,
		logger:   logger.With("component", "service.chat"),
		now:      time.Now,
	}
}

// RoomView is a room with its latest messages.
type RoomView struct {
	Room     *model.ChatRoom      `json:"room"`
	Messages []*model.ChatMessage `json:"messages"`
}

// ListRooms returns the rooms visible to the caller.
func (s *ChatService) ListRooms(ctx context.Context, ac *model.AuthContext) ([]*model.ChatRoom, error) {
	rooms, err := s.repo.ListRoomsForUser(ctx, ac.CompanyID, ac.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	if rooms == nil {
		rooms = []*model.ChatRoom{}
	}
	return rooms, nil
}

// CreateRoomInput defines input for creating a room.
type CreateRoomInput struct {
	Name        string
	Description string
	Type        string
	ProjectID   string
	TeamID      string
	IsPrivate   bool
	MemberIDs   []string
}

// CreateRoom creates a room with the caller as admin and the given members.
func (s *ChatService) CreateRoom(ctx context.Context, ac *model.AuthContext, input CreateRoomInput) (*model.ChatRoom, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}
	roomType := input.Type
	if roomType == "" {
		roomType = model.RoomGeneral
	}

	members := uniqueStrings(input.MemberIDs)
	if err := checkCompanyUsers(ctx, s.repo, ac.CompanyID, members); err != nil {
		return nil, err
	}

	room := &model.ChatRoom{
		ID:          generateULID(),
		CompanyID:   ac.CompanyID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Type:        roomType,
		ProjectID:   optional(input.ProjectID),
		TeamID:      optional(input.TeamID),
		IsPrivate:   input.IsPrivate,
		CreatedBy:   ac.UserID,
		CreatedAt:   s.now().UTC(),
	}

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		if err := tx.AddRoomMember(ctx, room.ID, ac.UserID, model.RoomRoleAdmin); err != nil {
			return err
		}
		for _, userID := range members {
			if userID == ac.UserID {
				continue
			}
			if err := tx.AddRoomMember(ctx, room.ID, userID, model.RoomRoleMember); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	created, err := s.repo.GetRoom(ctx, ac.CompanyID, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload room: %w", err)
	}
	emit(s.activity, ac, EntityChat, room.ID, "room_created", map[string]string{"name": room.Name})
	s.logger.Info("chat_room_created", "room_id", room.ID, "members", len(created.Members))
	return created, nil
}

// Room returns a room and its latest messages. The id "default" resolves to
// the company's general room, creating it on first use. Viewing a public room
// joins the caller.
func (s *ChatService) Room(ctx context.Context, ac *model.AuthContext, id string) (*RoomView, error) {
	var (
		room *model.ChatRoom
		err  error
	)
	if id == model.DefaultRoomID {
		room, err = s.defaultRoom(ctx, ac)
	} else {
		room, err = s.room(ctx, ac, id)
	}
	if err != nil {
		return nil, err
	}

	if !room.HasMember(ac.UserID) {
		if room.IsPrivate {
			return nil, ErrForbidden
		}
		if err := s.repo.AddRoomMember(ctx, room.ID, ac.UserID, model.RoomRoleMember); err != nil {
			return nil, fmt.Errorf("failed to join room: %w", err)
		}
		if room, err = s.room(ctx, ac, room.ID); err != nil {
			return nil, err
		}
	}

	messages, err := s.repo.ListRecentMessages(ctx, room.ID, recentMessageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []*model.ChatMessage{}
	}
	return &RoomView{Room: room, Messages: messages}, nil
}

// AddMember adds a company user to a room. Requires room admin or Admin.
func (s *ChatService) AddMember(ctx context.Context, ac *model.AuthContext, roomID, userID string) (*model.ChatRoom, error) {
	room, err := s.resolve(ctx, ac, roomID)
	if err != nil {
		return nil, err
	}
	if room.MemberRole(ac.UserID) != model.RoomRoleAdmin && !isAdmin(ac) {
		return nil, ErrForbidden
	}
	if _, err := companyUser(ctx, s.repo, ac.CompanyID, userID); err != nil {
		return nil, err
	}
	if room.HasMember(userID) {
		return nil, ErrAlreadyMember
	}

	if err := s.repo.AddRoomMember(ctx, room.ID, userID, model.RoomRoleMember); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	emit(s.activity, ac, EntityChat, room.ID, "member_added", map[string]string{"userId": userID})
	return s.room(ctx, ac, room.ID)
}

// SendMessage posts a message. The default room must already exist.
func (s *ChatService) SendMessage(ctx context.Context, ac *model.AuthContext, roomID, content string) (*model.ChatMessage, error) {
	room, err := s.resolve(ctx, ac, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsPrivate && !room.HasMember(ac.UserID) {
		return nil, ErrForbidden
	}

	sender, err := companyUser(ctx, s.repo, ac.CompanyID, ac.UserID)
	if err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:         generateULID(),
		RoomID:     room.ID,
		UserID:     ac.UserID,
		SenderName: sender.Name,
		Content:    strings.TrimSpace(content),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.metrics.IncChatMessageSent()
	emit(s.activity, ac, EntityChat, room.ID, "message_sent", map[string]string{"messageId": msg.ID})
	return msg, nil
}

// Pinned lists a room's pinned messages.
func (s *ChatService) Pinned(ctx context.Context, ac *model.AuthContext, roomID string) ([]*model.ChatMessage, error) {
	room, err := s.accessible(ctx, ac, roomID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.ListPinnedMessages(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pinned messages: %w", err)
	}
	if messages == nil {
		messages = []*model.ChatMessage{}
	}
	return messages, nil
}

// SetPinned pins or unpins a message of the room.
func (s *ChatService) SetPinned(ctx context.Context, ac *model.AuthContext, roomID, messageID string, pinned bool) error {
	room, err := s.accessible(ctx, ac, roomID)
	if err != nil {
		return err
	}
	if err := s.repo.SetMessagePinned(ctx, room.ID, messageID, pinned); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to update pin: %w", err)
	}

	action := "message_unpinned"
	if pinned {
		action = "message_pinned"
	}
	emit(s.activity, ac, EntityChat, room.ID, action, map[string]string{"messageId": messageID})
	return nil
}

// ChatReportInput selects messages for a report.
type ChatReportInput struct {
	StartDate string
	EndDate   string
	Format    string
}

// Report renders the caller's visible messages in the date range.
func (s *ChatService) Report(ctx context.Context, ac *model.AuthContext, input ChatReportInput) (*ChatReport, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, ErrInvalidFormat
	}
	from, to, err := reportRange(input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ChatReportRows(ctx, ac.CompanyID, ac.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load report rows: %w", err)
	}

	var report *ChatReport
	if format == ReportFormatCSV {
		report, err = renderCSVReport(rows)
	} else {
		report, err = renderPDFReport(rows, from, to, s.now())
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("chat_report_generated", "format", format, "rows", len(rows))
	return report, nil
}

// defaultRoom finds or creates the company's general room.
func (s *ChatService) defaultRoom(ctx context.Context, ac *model.AuthContext) (*model.ChatRoom, error) {
	if err := requireCompany(ac); err != nil {
		return nil, err
	}
	room, err := s.repo.DefaultRoom(ctx, ac.CompanyID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrRoomNotFound) {
		return nil, fmt.Errorf("failed to find default room: %w", err)
	}

	// Concurrent first visits race on the unique default index; the loser
	// reads the winner's row.
	room, created, err := s.repo.EnsureDefaultRoom(ctx, &model.ChatRoom{
		ID:          generateULID(),
		CompanyID:   ac.CompanyID,
		Name:        model.DefaultRoomName,
		Description: "Company-wide chat",
		Type:        model.RoomGeneral,
		IsDefault:   true,
		CreatedBy:   ac.UserID,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create default room: %w", err)
	}
	if created {
		emit(s.activity, ac, EntityChat, room.ID, "room_created", map[string]string{"name": room.Name})
		s.logger.Info("chat_room_created", "room_id", room.ID, "default", true)
	}
	return room, nil
}

// resolve loads a room, mapping "default" to the existing default room.
func (s *ChatService) resolve(ctx context.Context, ac *model.AuthContext, id string) (*model.ChatRoom, error) {
	if id != model.DefaultRoomID {
		return s.room(ctx, ac, id)
	}
	room, err := s.repo.DefaultRoom(ctx, ac.CompanyID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find default room: %w", err)
	}
	return room, nil
}

func (s *ChatService) accessible(ctx context.Context, ac *model.AuthContext, id string) (*model.ChatRoom, error) {
	room, err := s.resolve(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if room.IsPrivate && !room.HasMember(ac.UserID) {
		return nil, ErrForbidden
	}
	return room, nil
}

func (s *ChatService) room(ctx context.Context, ac *model.AuthContext, id string) (*model.ChatRoom, error) {
	room, err := s.repo.GetRoom(ctx, ac.CompanyID, id)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}
