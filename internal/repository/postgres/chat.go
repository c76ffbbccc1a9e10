package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echogram/internal/models"
)

type ChatRoomStore struct {
	pool *pgxpool.Pool
}

func NewChatRoomStore(pool *pgxpool.Pool) *ChatRoomStore {
	return &ChatRoomStore{pool: pool}
}

func (s *ChatRoomStore) Create(ctx context.Context, name string) (*models.ChatRoom, error) {
	query := `
		INSERT INTO chat_room (name, created_at)
		VALUES ($1, now())
		RETURNING id, name, created_at`

	var r models.ChatRoom
	if err := s.pool.QueryRow(ctx, query, name).Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert room: %w", translate(err, "room already exists", "referenced row does not exist"))
	}
	return &r, nil
}

func (s *ChatRoomStore) GetByID(ctx context.Context, id int64) (*models.ChatRoom, error) {
	var r models.ChatRoom
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM chat_room WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &r, nil
}

func (s *ChatRoomStore) List(ctx context.Context) ([]models.ChatRoom, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM chat_room ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]models.ChatRoom, 0)
	for rows.Next() {
		var r models.ChatRoom
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

type ChatMessageStore struct {
	pool *pgxpool.Pool
}

func NewChatMessageStore(pool *pgxpool.Pool) *ChatMessageStore {
	return &ChatMessageStore{pool: pool}
}

// Save assigns created_at with clock_timestamp() rather than now(): now() is
// the transaction start time, and two messages must never share a position
// in the room's order because of it. id still breaks exact ties.
func (s *ChatMessageStore) Save(ctx context.Context, roomID, userID int64, content string) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_message (chat_room_id, user_id, content, created_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, chat_room_id, user_id, content, created_at`

	var msg models.ChatMessage
	err := s.pool.QueryRow(ctx, query, roomID, userID, content).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.UserID,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w",
			translate(err, "message already exists", "user does not exist"))
	}
	return &msg, nil
}

func (s *ChatMessageStore) ListByRoom(ctx context.Context, roomID int64) ([]models.ChatMessage, error) {
	query := `
		SELECT id, chat_room_id, user_id, content, created_at
		FROM chat_message
		WHERE chat_room_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.UserID,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
