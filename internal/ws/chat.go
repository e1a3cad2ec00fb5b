package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
)

// handleJoinRoom subscribes the connection to a ticket room and
// replays both persisted streams to the requester only. A room that
// was never written to replays empty arrays, not an error.
func (h *SocketHandler) handleJoinRoom(ctx context.Context, conn *websocket.Conn, data json.RawMessage) error {
	var payload models.JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		observability.IncDroppedSubmit(models.EventJoinRoom, "bad_payload")
		return fmt.Errorf("%w: decode join-room: %v", errDropped, err)
	}
	if payload.Room == "" {
		observability.IncDroppedSubmit(models.EventJoinRoom, "missing_field")
		return fmt.Errorf("%w: join-room without room", errDropped)
	}

	// Held through subscribe and replay so a concurrent broadcast
	// cannot land between the snapshot and the history frames.
	mu := h.lockChannel(TicketChannel(payload.Room))
	mu.Lock()
	defer mu.Unlock()

	h.hub.Subscribe(TicketChannel(payload.Room), conn)

	msgs, err := h.chats.ListMessages(ctx, payload.Room)
	if err != nil {
		return fmt.Errorf("load chat history for %s: %w", payload.Room, err)
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	if err := h.hub.Send(conn, models.Envelope{Event: models.EventChatHistory, Data: msgs}); err != nil {
		return fmt.Errorf("send chat history: %w", err)
	}

	entries, err := h.timeline.ListEntries(ctx, payload.Room)
	if err != nil {
		return fmt.Errorf("load timeline history for %s: %w", payload.Room, err)
	}
	if entries == nil {
		entries = []models.TimelineEntry{}
	}
	if err := h.hub.Send(conn, models.Envelope{Event: models.EventTimelineHistory, Data: entries}); err != nil {
		return fmt.Errorf("send timeline history: %w", err)
	}
	return nil
}

// handleSendMessage persists a chat message and fans it out to every
// subscriber of the room, the sender included. The sender's UI updates
// from the broadcast, so it always renders exactly what was persisted.
func (h *SocketHandler) handleSendMessage(ctx context.Context, conn *websocket.Conn, info ConnInfo, data json.RawMessage) error {
	var payload models.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		observability.IncDroppedSubmit(models.EventSendMessage, "bad_payload")
		return fmt.Errorf("%w: decode send-message: %v", errDropped, err)
	}
	if payload.Room == "" || payload.Name == "" || payload.Sender == "" || payload.Role == "" || payload.Message == "" {
		observability.IncDroppedSubmit(models.EventSendMessage, "missing_field")
		return fmt.Errorf("%w: send-message with missing fields", errDropped)
	}
	if info.Identity.Email != "" && payload.Sender != info.Identity.Email {
		observability.IncDroppedSubmit(models.EventSendMessage, "sender_mismatch")
		return fmt.Errorf("%w: sender %q does not match connection identity %q", errDropped, payload.Sender, info.Identity.Email)
	}

	// Persist and broadcast under the channel lock: fan-out order must
	// match persistence order or live views diverge from replay.
	mu := h.lockChannel(TicketChannel(payload.Room))
	mu.Lock()
	defer mu.Unlock()

	// A message sent before an explicit join still lands in the room.
	h.hub.Subscribe(TicketChannel(payload.Room), conn)

	msg, err := h.chats.AppendMessage(ctx, payload.Room, payload.Name, payload.Sender, payload.Role, payload.Message)
	if err != nil {
		return fmt.Errorf("persist chat message for %s: %w", payload.Room, err)
	}

	h.hub.Broadcast(TicketChannel(payload.Room), models.Envelope{Event: models.EventReceiveMessage, Data: msg})
	return nil
}
