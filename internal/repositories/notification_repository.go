package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"helpdesk-service/internal/models"
)

// NotificationRepository defines interactions for user notifications.
type NotificationRepository interface {
	AppendNotification(ctx context.Context, receiver, message, ticket string) (models.Notification, error)
	ListRecent(ctx context.Context, receiver string, limit int) ([]models.Notification, error)
}

// NotificationRepo is a sqlx-backed repository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// AppendNotification stores a notification for a receiver.
func (r *NotificationRepo) AppendNotification(ctx context.Context, receiver, message, ticket string) (models.Notification, error) {
	var n models.Notification
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (receiver, message, ticket) VALUES ($1, $2, $3) RETURNING id, receiver, message, ticket, created_at`, receiver, message, ticket).
		Scan(&n.ID, &n.Receiver, &n.Message, &n.Ticket, &n.CreatedAt)
	return n, err
}

// ListRecent returns the most recent notifications for a receiver,
// newest first. The replay on join is bounded: a recency feed, not an
// archive.
func (r *NotificationRepo) ListRecent(ctx context.Context, receiver string, limit int) ([]models.Notification, error) {
	var ns []models.Notification
	err := r.db.SelectContext(ctx, &ns, `SELECT id, receiver, message, ticket, created_at FROM notifications WHERE receiver=$1 ORDER BY id DESC LIMIT $2`, receiver, limit)
	return ns, err
}
