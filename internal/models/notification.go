package models

import "time"

// Notification is a push notification addressed to one user. The
// receiver's email doubles as the channel name. Ticket is carried as
// its own column so clients never have to parse it out of the text.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	Receiver  string    `db:"receiver" json:"receiver"`
	Message   string    `db:"message" json:"message"`
	Ticket    string    `db:"ticket" json:"ticket,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
