package helpdesk

import (
	"encoding/json"
	"time"
)

// Wire types for the realtime protocol. The field shapes mirror the
// server's persisted rows; they are the protocol contract, so the
// client carries its own copies rather than reaching into the server.

// ChatMessage is one message in a ticket room.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	Name      string    `json:"name"`
	Sender    string    `json:"sender"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelineEntry is a lifecycle event on a ticket.
type TimelineEntry struct {
	ID        int64     `json:"id"`
	Ticket    string    `json:"ticket"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a push notification addressed to one user.
type Notification struct {
	ID        int64     `json:"id"`
	Receiver  string    `json:"receiver"`
	Message   string    `json:"message"`
	Ticket    string    `json:"ticket,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	evtJoinRoom            = "join-room"
	evtChatHistory         = "chat-history"
	evtTimelineHistory     = "timeline-history"
	evtSendMessage         = "send-message"
	evtReceiveMessage      = "receive-message"
	evtSendTimeline        = "send-timeline"
	evtReceiveTimeline     = "receive-timeline"
	evtDeleteTimeline      = "delete-timeline"
	evtJoinNotification    = "join-notification"
	evtNotificationHistory = "notification-history"
	evtSendNotification    = "send-notification"
	evtReceiveNotification = "receive-notification"
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRoomPayload struct {
	Room string `json:"room"`
}

type sendMessagePayload struct {
	Room    string `json:"room"`
	Name    string `json:"name"`
	Sender  string `json:"sender"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

type sendTimelinePayload struct {
	Ticket   string `json:"ticket"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type deleteTimelinePayload struct {
	Ticket string `json:"ticket"`
	ID     int64  `json:"id"`
}

type joinNotificationPayload struct {
	Receiver string `json:"receiver"`
}

type sendNotificationPayload struct {
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
	Ticket   string `json:"ticket"`
}
