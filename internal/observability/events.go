package observability

// EventEnvelope wraps a websocket lifecycle event (connect, disconnect,
// write error) for the helpdesk topic exchange. Consumers key off
// EventType/EventName; the payload carries the connection and identity
// details.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles the AMQP headers that let a consumer correlate
// a lifecycle event back to the originating handshake request and trace.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
