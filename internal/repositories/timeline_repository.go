package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"helpdesk-service/internal/models"
)

var ErrEntryNotFound = errors.New("timeline entry not found")

// TimelineRepository defines interactions for ticket timeline entries.
type TimelineRepository interface {
	AppendEntry(ctx context.Context, ticket, title, subtitle string) (models.TimelineEntry, error)
	ListEntries(ctx context.Context, ticket string) ([]models.TimelineEntry, error)
	DeleteEntry(ctx context.Context, ticket string, id int64) error
}

// TimelineRepo is a sqlx-backed repository.
type TimelineRepo struct {
	db *sqlx.DB
}

// NewTimelineRepo constructs a TimelineRepo.
func NewTimelineRepo(db *sqlx.DB) *TimelineRepo {
	return &TimelineRepo{db: db}
}

// AppendEntry stores a timeline entry for a ticket.
func (r *TimelineRepo) AppendEntry(ctx context.Context, ticket, title, subtitle string) (models.TimelineEntry, error) {
	var entry models.TimelineEntry
	err := r.db.QueryRowxContext(ctx, `INSERT INTO ticket_timeline (ticket, title, subtitle) VALUES ($1, $2, $3) RETURNING id, ticket, title, subtitle, created_at`, ticket, title, subtitle).
		Scan(&entry.ID, &entry.Ticket, &entry.Title, &entry.Subtitle, &entry.CreatedAt)
	return entry, err
}

// ListEntries returns the full ticket timeline in insertion order.
func (r *TimelineRepo) ListEntries(ctx context.Context, ticket string) ([]models.TimelineEntry, error) {
	var entries []models.TimelineEntry
	err := r.db.SelectContext(ctx, &entries, `SELECT id, ticket, title, subtitle, created_at FROM ticket_timeline WHERE ticket=$1 ORDER BY id ASC`, ticket)
	return entries, err
}

// DeleteEntry removes a timeline entry by id, scoped to its ticket.
func (r *TimelineRepo) DeleteEntry(ctx context.Context, ticket string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ticket_timeline WHERE id=$1 AND ticket=$2`, id, ticket)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrEntryNotFound
	}
	return nil
}
