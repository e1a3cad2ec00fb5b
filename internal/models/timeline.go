package models

import "time"

// TimelineEntry is a discrete lifecycle event on a ticket: a status
// change, an assignment, or a custom note. Entries are append-only but
// deletable by id so an erroneous entry can be retracted.
type TimelineEntry struct {
	ID        int64     `db:"id" json:"id"`
	Ticket    string    `db:"ticket" json:"ticket"`
	Title     string    `db:"title" json:"title"`
	Subtitle  string    `db:"subtitle" json:"subtitle"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
