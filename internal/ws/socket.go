package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"helpdesk-service/internal/auth"
	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/rabbitmq"
	"helpdesk-service/internal/repositories"
)

// errDropped marks a submit that was discarded before persistence.
// Nothing is propagated to the client; the policy is log-only.
var errDropped = errors.New("submit dropped")

// SocketHandler owns the realtime endpoint: one websocket per client,
// events dispatched by name to the room protocol handlers.
type SocketHandler struct {
	hub           *Hub
	chats         repositories.ChatMessageRepository
	timeline      repositories.TimelineRepository
	notifications repositories.NotificationRepository
	verifier      *auth.Verifier
	publisher     rabbitmq.Publisher
	logger        zerolog.Logger
	historyLimit  int

	// chanMu serializes persist-then-broadcast per channel. Each read
	// loop is its own goroutine; without this, two submits to one room
	// could broadcast in the opposite order of their persisted ids and
	// live views would disagree with a later history replay.
	chanMuGuard sync.Mutex
	chanMu      map[string]*sync.Mutex
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(
	hub *Hub,
	chats repositories.ChatMessageRepository,
	timeline repositories.TimelineRepository,
	notifications repositories.NotificationRepository,
	verifier *auth.Verifier,
	publisher rabbitmq.Publisher,
	logger zerolog.Logger,
	historyLimit int,
) *SocketHandler {
	return &SocketHandler{
		hub:           hub,
		chats:         chats,
		timeline:      timeline,
		notifications: notifications,
		verifier:      verifier,
		publisher:     publisher,
		logger:        logger,
		historyLimit:  historyLimit,
		chanMu:        make(map[string]*sync.Mutex),
	}
}

// lockChannel returns the mutex ordering writes on one channel.
func (h *SocketHandler) lockChannel(channel string) *sync.Mutex {
	h.chanMuGuard.Lock()
	defer h.chanMuGuard.Unlock()
	mu, ok := h.chanMu[channel]
	if !ok {
		mu = &sync.Mutex{}
		h.chanMu[channel] = mu
	}
	return mu
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, pins the verified identity to it and
// starts the read loop.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("helpdesk-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	identity, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		Identity:    identity,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.Register(conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("conn", "ws_connect")
	h.publishLifecycle(ctx, info, "ws_connect", "")
	h.logger.Info().
		Str("conn_id", info.ConnID).
		Str("email", identity.Email).
		Str("role", identity.Role).
		Msg("websocket connected")

	// The request context dies when this handler returns; the read
	// loop outlives it and runs on its own context.
	go h.readLoop(context.Background(), conn, info)
}

func (h *SocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveConnection(conn)
		observability.DecWSActive()
		observability.IncWSEvent("conn", "ws_disconnect")
		h.publishLifecycle(ctx, info, "ws_disconnect", closeReason)
		h.logger.Info().
			Str("conn_id", info.ConnID).
			Str("email", info.Identity.Email).
			Str("reason", closeReason).
			Msg("websocket disconnected")
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("conn", "ws_error")
			}
			return
		}

		var event models.InboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			h.logger.Warn().Str("conn_id", info.ConnID).Err(err).Msg("malformed event frame")
			continue
		}

		h.dispatch(ctx, conn, info, event)
	}
}

func (h *SocketHandler) dispatch(ctx context.Context, conn *websocket.Conn, info ConnInfo, event models.InboundEvent) {
	var err error
	kind := "ticket"

	switch event.Event {
	case models.EventJoinRoom:
		err = h.handleJoinRoom(ctx, conn, event.Data)
	case models.EventSendMessage:
		err = h.handleSendMessage(ctx, conn, info, event.Data)
	case models.EventSendTimeline:
		err = h.handleSendTimeline(ctx, event.Data)
	case models.EventDeleteTimeline:
		err = h.handleDeleteTimeline(ctx, event.Data)
	case models.EventJoinNotification:
		kind = "user"
		err = h.handleJoinNotification(ctx, conn, info, event.Data)
	case models.EventSendNotification:
		kind = "user"
		err = h.handleSendNotification(ctx, info, event.Data)
	default:
		h.logger.Warn().Str("conn_id", info.ConnID).Str("event", event.Event).Msg("unknown event")
		return
	}

	observability.IncWSEvent(kind, event.Event)
	if err != nil {
		// Log-only failure policy: the client gets no error frame.
		h.logger.Error().
			Str("conn_id", info.ConnID).
			Str("event", event.Event).
			Str("email", info.Identity.Email).
			Err(err).
			Msg("event handler failed")
	}
}

func (h *SocketHandler) validateToken(header string) (auth.Identity, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return h.verifier.Verify(parts[1])
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

func (h *SocketHandler) publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "conn",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"email":     info.Identity.Email,
			"role":      info.Identity.Role,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, rabbitmq.RoutingKeyWSConnections, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
