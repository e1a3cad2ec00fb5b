package observability

import (
	"net"
	"net/http"
	"strings"
)

// Request metadata captured once at the websocket handshake and pinned
// to the connection for the lifetime of its lifecycle events.

// DeviceIDFromRequest reads the device id the helpdesk frontend sends
// with every handshake. Empty for clients that do not send one.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// RequestIDFromRequest reads the request id assigned by the edge proxy.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// IPFromRequest resolves the client address, preferring the first hop
// of X-Forwarded-For when the service sits behind the proxy.
func IPFromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
