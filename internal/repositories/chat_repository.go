package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"helpdesk-service/internal/models"
)

// ChatMessageRepository defines interactions for ticket room messages.
type ChatMessageRepository interface {
	AppendMessage(ctx context.Context, room, name, sender, role, message string) (models.ChatMessage, error)
	ListMessages(ctx context.Context, room string) ([]models.ChatMessage, error)
}

// ChatMessageRepo is a sqlx-backed repository.
type ChatMessageRepo struct {
	db *sqlx.DB
}

// NewChatMessageRepo constructs a ChatMessageRepo.
func NewChatMessageRepo(db *sqlx.DB) *ChatMessageRepo {
	return &ChatMessageRepo{db: db}
}

// AppendMessage stores a message in a ticket room and returns the row
// with its server-assigned id and timestamp.
func (r *ChatMessageRepo) AppendMessage(ctx context.Context, room, name, sender, role, message string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO chat_messages (room, name, sender, role, message) VALUES ($1, $2, $3, $4, $5) RETURNING id, room, name, sender, role, message, created_at`, room, name, sender, role, message).
		Scan(&msg.ID, &msg.Room, &msg.Name, &msg.Sender, &msg.Role, &msg.Message, &msg.CreatedAt)
	return msg, err
}

// ListMessages returns the full room history in insertion order.
func (r *ChatMessageRepo) ListMessages(ctx context.Context, room string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room, name, sender, role, message, created_at FROM chat_messages WHERE room=$1 ORDER BY id ASC`, room)
	return msgs, err
}
