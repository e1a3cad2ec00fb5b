package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/rabbitmq"
)

// handleJoinNotification subscribes the connection to its own
// notification channel and replays the bounded recency feed, newest
// first, to the requester only.
func (h *SocketHandler) handleJoinNotification(ctx context.Context, conn *websocket.Conn, info ConnInfo, data json.RawMessage) error {
	var payload models.JoinNotificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		observability.IncDroppedSubmit(models.EventJoinNotification, "bad_payload")
		return fmt.Errorf("%w: decode join-notification: %v", errDropped, err)
	}
	if payload.Receiver == "" {
		observability.IncDroppedSubmit(models.EventJoinNotification, "missing_field")
		return fmt.Errorf("%w: join-notification without receiver", errDropped)
	}
	if info.Identity.Email != "" && payload.Receiver != info.Identity.Email {
		observability.IncDroppedSubmit(models.EventJoinNotification, "receiver_mismatch")
		return fmt.Errorf("%w: receiver %q does not match connection identity %q", errDropped, payload.Receiver, info.Identity.Email)
	}

	mu := h.lockChannel(UserChannel(payload.Receiver))
	mu.Lock()
	defer mu.Unlock()

	h.hub.Subscribe(UserChannel(payload.Receiver), conn)

	ns, err := h.notifications.ListRecent(ctx, payload.Receiver, h.historyLimit)
	if err != nil {
		return fmt.Errorf("load notifications for %s: %w", payload.Receiver, err)
	}
	if ns == nil {
		ns = []models.Notification{}
	}
	if err := h.hub.Send(conn, models.Envelope{Event: models.EventNotificationHistory, Data: ns}); err != nil {
		return fmt.Errorf("send notification history: %w", err)
	}
	return nil
}

// handleSendNotification persists a notification and broadcasts it to
// every session the receiver has open. The persisted event is also
// published for the external mail dispatcher.
func (h *SocketHandler) handleSendNotification(ctx context.Context, info ConnInfo, data json.RawMessage) error {
	var payload models.SendNotificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		observability.IncDroppedSubmit(models.EventSendNotification, "bad_payload")
		return fmt.Errorf("%w: decode send-notification: %v", errDropped, err)
	}
	if payload.Receiver == "" || payload.Message == "" {
		observability.IncDroppedSubmit(models.EventSendNotification, "missing_field")
		return fmt.Errorf("%w: send-notification with missing fields", errDropped)
	}

	mu := h.lockChannel(UserChannel(payload.Receiver))
	mu.Lock()
	defer mu.Unlock()

	n, err := h.notifications.AppendNotification(ctx, payload.Receiver, payload.Message, payload.Ticket)
	if err != nil {
		return fmt.Errorf("persist notification for %s: %w", payload.Receiver, err)
	}

	h.hub.Broadcast(UserChannel(payload.Receiver), models.Envelope{Event: models.EventReceiveNotification, Data: n})

	if h.publisher != nil {
		event := map[string]interface{}{
			"notification": n,
			"actor":        info.Identity.Email,
		}
		if err := h.publisher.Publish(ctx, rabbitmq.RoutingKeyNotificationCreated, event); err != nil {
			observability.IncAMQPPublishError()
			h.logger.Warn().Err(err).Int64("notification_id", n.ID).Msg("notification event publish failed")
		}
	}
	return nil
}
