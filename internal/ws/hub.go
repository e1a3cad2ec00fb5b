package ws

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/rabbitmq"
)

// Channel namespaces. Ticket rooms and notification channels share one
// registry; the prefix keeps a ticket id from ever colliding with an
// email address.
const (
	ticketPrefix = "ticket:"
	userPrefix   = "user:"
)

// TicketChannel names the channel carrying a ticket's chat and
// timeline streams.
func TicketChannel(room string) string {
	return ticketPrefix + room
}

// UserChannel names a receiver's notification channel.
func UserChannel(receiver string) string {
	return userPrefix + receiver
}

// ChannelKind reports the metrics label for a channel name.
func ChannelKind(channel string) string {
	if strings.HasPrefix(channel, userPrefix) {
		return "user"
	}
	return "ticket"
}

// Hub maintains the channel-subscription table: which connections are
// subscribed to which channel names. Handlers only touch it through
// the subscribe/unsubscribe/broadcast primitives.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*websocket.Conn]bool
	byConn   map[*websocket.Conn]map[string]bool
	info     map[*websocket.Conn]ConnInfo
	writeMu  map[*websocket.Conn]*sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*websocket.Conn]bool),
		byConn:   make(map[*websocket.Conn]map[string]bool),
		info:     make(map[*websocket.Conn]ConnInfo),
		writeMu:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Register records a new connection before any subscription exists.
func (h *Hub) Register(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.info[conn] = info
	h.writeMu[conn] = &sync.Mutex{}
	if _, ok := h.byConn[conn]; !ok {
		h.byConn[conn] = make(map[string]bool)
	}
}

// Subscribe adds a connection to a channel. Subscribing twice is a
// no-op beyond re-subscription.
func (h *Hub) Subscribe(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*websocket.Conn]bool)
	}
	h.channels[channel][conn] = true
	if _, ok := h.byConn[conn]; !ok {
		h.byConn[conn] = make(map[string]bool)
	}
	h.byConn[conn][channel] = true
}

// Unsubscribe removes a connection from a channel.
func (h *Hub) Unsubscribe(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(channel, conn)
}

// RemoveConnection drops a connection from every channel it joined.
// Called on disconnect; the transport auto-unsubscribes this way.
func (h *Hub) RemoveConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.byConn[conn] {
		h.removeLocked(channel, conn)
	}
	delete(h.byConn, conn)
	delete(h.info, conn)
	delete(h.writeMu, conn)
}

func (h *Hub) removeLocked(channel string, conn *websocket.Conn) {
	if conns, ok := h.channels[channel]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
	if channels, ok := h.byConn[conn]; ok {
		delete(channels, channel)
	}
}

// Info returns the ConnInfo pinned at handshake time.
func (h *Hub) Info(conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.info[conn]
	return info, ok
}

// Subscribers reports how many connections are on a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Send writes one event to a single connection. Used for history
// replay, which goes to the requester only.
func (h *Hub) Send(conn *websocket.Conn, event models.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.write(conn, payload)
}

// Broadcast sends an event to every subscriber of a channel, the
// originating connection included.
func (h *Hub) Broadcast(channel string, event models.Envelope) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.channels[channel]))
	for conn := range h.channels[channel] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.write(conn, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.publishWSError(channel, conn, err)
			h.RemoveConnection(conn)
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, payload []byte) error {
	h.mu.RLock()
	mu := h.writeMu[conn]
	h.mu.RUnlock()
	if mu == nil {
		mu = &sync.Mutex{}
	}
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) publishWSError(channel string, conn *websocket.Conn, err error) {
	info, ok := h.Info(conn)
	if !ok {
		return
	}

	kind := ChannelKind(channel)
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"channel":     channel,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"email":     info.Identity.Email,
			"role":      info.Identity.Role,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func wsRoutingKey(kind string) string {
	if kind == "user" {
		return rabbitmq.RoutingKeyWSUsers
	}
	return rabbitmq.RoutingKeyWSTickets
}
