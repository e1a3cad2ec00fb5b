package models

import "time"

// Roles a chat participant can carry. The set mirrors the helpdesk
// user model: ticket submitters, assigned persons-in-charge, admins.
const (
	RoleUser  = "User"
	RolePIC   = "PIC"
	RoleAdmin = "Admin"
)

// ChatMessage is one message in a ticket room. Rows are append-only.
type ChatMessage struct {
	ID        int64     `db:"id" json:"id"`
	Room      string    `db:"room" json:"room"`
	Name      string    `db:"name" json:"name"`
	Sender    string    `db:"sender" json:"sender"`
	Role      string    `db:"role" json:"role"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
