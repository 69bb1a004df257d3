package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/commandgrid/pmt/internal/model"
)

// Common errors for chat repository operations.
var (
	ErrRoomNotFound    = errors.New("chat room not found")
	ErrMessageNotFound = errors.New("chat message not found")
)

const roomColumns = `r.id, r.company_id, r.name, r.description, r.type, r.project_id, r.team_id,
	r.is_private, r.is_default, r.created_by, r.created_at`

// CreateRoom inserts a chat room without members.
func (r *Repository) CreateRoom(ctx context.Context, room *model.ChatRoom) error {
	query := `
		INSERT INTO chat_rooms (id, company_id, name, description, type, project_id, team_id, is_private, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		room.ID, room.CompanyID, room.Name, room.Description, room.Type, room.ProjectID, room.TeamID,
		room.IsPrivate, room.CreatedBy, room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat room: %w", err)
	}
	return nil
}

// AddRoomMember inserts a membership, ignoring an existing row.
func (r *Repository) AddRoomMember(ctx context.Context, roomID, userID, role string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_room_members (room_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT ON CONSTRAINT chat_room_members_unique DO NOTHING`,
		roomID, userID, role,
	)
	if err != nil {
		return fmt.Errorf("failed to add room member: %w", err)
	}
	return nil
}

// GetRoom retrieves a company room with its members.
func (r *Repository) GetRoom(ctx context.Context, companyID, id string) (*model.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms r WHERE r.id = $1 AND r.company_id = $2`

	room, err := scanRoom(r.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}

	if err := r.loadRoomMembers(ctx, []*model.ChatRoom{room}); err != nil {
		return nil, err
	}
	return room, nil
}

// EnsureDefaultRoom inserts room as the company's default room unless one
// already exists, then returns the stored default. created reports whether
// this call inserted it. Rooms made through CreateRoom are never default.
func (r *Repository) EnsureDefaultRoom(ctx context.Context, room *model.ChatRoom) (stored *model.ChatRoom, created bool, err error) {
	query := `
		INSERT INTO chat_rooms (id, company_id, name, description, type, is_private, is_default, created_by, created_at)
		VALUES ($1, $2, $3, $4, 'general', FALSE, TRUE, $5, $6)
		ON CONFLICT (company_id) WHERE is_default DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, room.ID, room.CompanyID, room.Name, room.Description, room.CreatedBy, room.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create default room: %w", err)
	}

	stored, err = r.DefaultRoom(ctx, room.CompanyID)
	if err != nil {
		return nil, false, err
	}
	return stored, tag.RowsAffected() == 1, nil
}

// DefaultRoom returns the company's default room.
func (r *Repository) DefaultRoom(ctx context.Context, companyID string) (*model.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms r WHERE r.company_id = $1 AND r.is_default`

	room, err := scanRoom(r.db.QueryRow(ctx, query, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find chat room: %w", err)
	}

	if err := r.loadRoomMembers(ctx, []*model.ChatRoom{room}); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRoomsForUser lists company rooms that are public or that the user belongs to.
func (r *Repository) ListRoomsForUser(ctx context.Context, companyID, userID string) ([]*model.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms r
		WHERE r.company_id = $1
		  AND (NOT r.is_private OR EXISTS (
			SELECT 1 FROM chat_room_members m WHERE m.room_id = r.id AND m.user_id = $2))
		ORDER BY r.created_at, r.id`

	rows, err := r.db.Query(ctx, query, companyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rooms: %w", err)
	}

	if err := r.loadRoomMembers(ctx, rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// loadRoomMembers fills Members on every room with a single query.
func (r *Repository) loadRoomMembers(ctx context.Context, rooms []*model.ChatRoom) error {
	if len(rooms) == 0 {
		return nil
	}

	ids := make([]string, len(rooms))
	byID := make(map[string]*model.ChatRoom, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
		room.Members = []model.ChatRoomMember{}
		byID[room.ID] = room
	}

	rows, err := r.db.Query(ctx, `
		SELECT m.room_id, m.user_id, u.name, m.role, m.joined_at
		FROM chat_room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ANY($1)
		ORDER BY m.joined_at, u.name
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load room members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.ChatRoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return fmt.Errorf("failed to scan room member: %w", err)
		}
		if room, ok := byID[m.RoomID]; ok {
			room.Members = append(room.Members, m)
		}
	}
	return rows.Err()
}

const messageSelect = `
	SELECT c.id, c.room_id, c.user_id, u.name, c.content, c.is_bot, c.metadata, c.is_pinned, c.pinned_at, c.created_at
	FROM chat_messages c
	JOIN users u ON u.id = c.user_id
`

// CreateMessage inserts a chat message.
func (r *Repository) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, room_id, user_id, content, is_bot, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.RoomID, msg.UserID, msg.Content, msg.IsBot, msg.Metadata.String(), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

// ListRecentMessages returns the latest limit messages of a room in ascending order.
func (r *Repository) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*model.ChatMessage, error) {
	limit = clampLimit(limit, 100, 500)
	query := `SELECT * FROM (` + messageSelect + `
		WHERE c.room_id = $1
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $2) recent
		ORDER BY created_at, id`

	return r.queryMessages(ctx, query, roomID, limit)
}

// ListPinnedMessages returns pinned messages, most recently pinned first.
func (r *Repository) ListPinnedMessages(ctx context.Context, roomID string) ([]*model.ChatMessage, error) {
	query := messageSelect + ` WHERE c.room_id = $1 AND c.is_pinned ORDER BY c.pinned_at DESC, c.id`
	return r.queryMessages(ctx, query, roomID)
}

// SetMessagePinned pins or unpins a message in a room.
func (r *Repository) SetMessagePinned(ctx context.Context, roomID, messageID string, pinned bool) error {
	query := `
		UPDATE chat_messages
		SET is_pinned = $3, pinned_at = CASE WHEN $3 THEN NOW() ELSE NULL END
		WHERE id = $1 AND room_id = $2
	`

	result, err := r.db.Exec(ctx, query, messageID, roomID, pinned)
	if err != nil {
		return fmt.Errorf("failed to update pin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// CountRooms counts a company's chat rooms.
func (r *Repository) CountRooms(ctx context.Context, companyID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chat_rooms WHERE company_id = $1`, companyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chat rooms: %w", err)
	}
	return n, nil
}

// ChatReportRows returns messages in [from, to) that the user sent or can see
// through room membership, oldest first.
func (r *Repository) ChatReportRows(ctx context.Context, companyID, userID string, from, to time.Time) ([]model.ChatReportRow, error) {
	query := `
		SELECT c.created_at, u.name, r.name, COALESCE(p.name, ''), c.content
		FROM chat_messages c
		JOIN chat_rooms r ON r.id = c.room_id
		JOIN users u ON u.id = c.user_id
		LEFT JOIN projects p ON p.id = r.project_id
		WHERE r.company_id = $1
		  AND c.created_at >= $3 AND c.created_at < $4
		  AND (c.user_id = $2 OR EXISTS (
			SELECT 1 FROM chat_room_members m WHERE m.room_id = r.id AND m.user_id = $2))
		ORDER BY c.created_at, c.id
	`

	rows, err := r.db.Query(ctx, query, companyID, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat report: %w", err)
	}
	defer rows.Close()

	var out []model.ChatReportRow
	for rows.Next() {
		var row model.ChatReportRow
		if err := rows.Scan(&row.CreatedAt, &row.SenderName, &row.RoomName, &row.ProjectName, &row.Message); err != nil {
			return nil, fmt.Errorf("failed to scan chat report row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]*model.ChatMessage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	messages := []*model.ChatMessage{}
	for rows.Next() {
		var (
			m        model.ChatMessage
			metadata []byte
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.SenderName, &m.Content, &m.IsBot,
			&metadata, &m.IsPinned, &m.PinnedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Metadata = metadata
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func scanRoom(row pgx.Row) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := row.Scan(
		&room.ID,
		&room.CompanyID,
		&room.Name,
		&room.Description,
		&room.Type,
		&room.ProjectID,
		&room.TeamID,
		&room.IsPrivate,
		&room.IsDefault,
		&room.CreatedBy,
		&room.CreatedAt,
	)
	return &room, err
}
