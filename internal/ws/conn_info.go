package ws

import (
	"time"

	"helpdesk-service/internal/auth"
)

// ConnInfo carries the verified identity and request metadata pinned to
// a websocket connection at handshake time.
type ConnInfo struct {
	ConnID      string
	Identity    auth.Identity
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
