package models

import "encoding/json"

// Wire event names. Client-to-server events carry a payload struct
// below; server-to-client events carry a row or a slice of rows.
const (
	EventJoinRoom            = "join-room"
	EventChatHistory         = "chat-history"
	EventTimelineHistory     = "timeline-history"
	EventSendMessage         = "send-message"
	EventReceiveMessage      = "receive-message"
	EventSendTimeline        = "send-timeline"
	EventReceiveTimeline     = "receive-timeline"
	EventDeleteTimeline      = "delete-timeline"
	EventJoinNotification    = "join-notification"
	EventNotificationHistory = "notification-history"
	EventSendNotification    = "send-notification"
	EventReceiveNotification = "receive-notification"
)

// Envelope is an outbound websocket frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundEvent is an inbound frame whose payload is decoded by the
// handler the event name dispatches to.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinRoomPayload subscribes the connection to a ticket room.
type JoinRoomPayload struct {
	Room string `json:"room"`
}

// SendMessagePayload submits a chat message to a ticket room.
type SendMessagePayload struct {
	Room    string `json:"room"`
	Name    string `json:"name"`
	Sender  string `json:"sender"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// SendTimelinePayload submits a timeline entry for a ticket.
type SendTimelinePayload struct {
	Ticket   string `json:"ticket"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// DeleteTimelinePayload retracts a timeline entry by id.
type DeleteTimelinePayload struct {
	Ticket string `json:"ticket"`
	ID     int64  `json:"id"`
}

// JoinNotificationPayload subscribes to the receiver's channel.
type JoinNotificationPayload struct {
	Receiver string `json:"receiver"`
}

// SendNotificationPayload submits a notification for a receiver.
type SendNotificationPayload struct {
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
	Ticket   string `json:"ticket"`
}
