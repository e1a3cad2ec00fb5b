// Package helpdesk provides a Go client for the helpdesk realtime
// messaging protocol: ticket rooms carrying chat and timeline streams,
// and per-user notification channels.
package helpdesk

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Session is one client connection. It owns the websocket, tracks the
// currently bound ticket room, and buffers the three local streams:
// seeded by history events, appended to by receive events.
type Session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu            sync.RWMutex
	room          string
	messages      []ChatMessage
	timeline      []TimelineEntry
	notifications []Notification

	done    chan struct{}
	readErr error
}

// Dial connects to the realtime endpoint. baseURL is the http(s) or
// ws(s) server address; token is the caller's access token.
func Dial(baseURL, token string) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial realtime endpoint: %w", err)
	}

	s := &Session{conn: conn, done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

// BindTicket joins a ticket's room and resets the chat and timeline
// buffers; the next history events reseed them. Call it again on every
// navigation to a new ticket.
func (s *Session) BindTicket(room string) error {
	s.mu.Lock()
	s.room = room
	s.messages = nil
	s.timeline = nil
	s.mu.Unlock()

	return s.emit(evtJoinRoom, joinRoomPayload{Room: room})
}

// BindNotifications joins the receiver's notification channel. The
// receiver must be the identity the session authenticated as.
func (s *Session) BindNotifications(receiver string) error {
	s.mu.Lock()
	s.notifications = nil
	s.mu.Unlock()

	return s.emit(evtJoinNotification, joinNotificationPayload{Receiver: receiver})
}

// SendMessage submits a chat message to the bound ticket room.
func (s *Session) SendMessage(name, sender, role, message string) error {
	s.mu.RLock()
	room := s.room
	s.mu.RUnlock()

	return s.emit(evtSendMessage, sendMessagePayload{
		Room:    room,
		Name:    name,
		Sender:  sender,
		Role:    role,
		Message: message,
	})
}

// SendTimeline submits a timeline entry for the bound ticket.
func (s *Session) SendTimeline(title, subtitle string) error {
	s.mu.RLock()
	ticket := s.room
	s.mu.RUnlock()

	return s.emit(evtSendTimeline, sendTimelinePayload{
		Ticket:   ticket,
		Title:    title,
		Subtitle: subtitle,
	})
}

// DeleteTimeline retracts a timeline entry on the bound ticket. Every
// subscriber, this session included, receives a full timeline replace.
func (s *Session) DeleteTimeline(id int64) error {
	s.mu.RLock()
	ticket := s.room
	s.mu.RUnlock()

	return s.emit(evtDeleteTimeline, deleteTimelinePayload{Ticket: ticket, ID: id})
}

// SendNotification submits a notification for a receiver.
func (s *Session) SendNotification(receiver, message, ticket string) error {
	return s.emit(evtSendNotification, sendNotificationPayload{
		Receiver: receiver,
		Message:  message,
		Ticket:   ticket,
	})
}

// Messages returns a snapshot of the chat buffer.
func (s *Session) Messages() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Timeline returns a snapshot of the timeline buffer.
func (s *Session) Timeline() []TimelineEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TimelineEntry, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// Notifications returns a snapshot of the notification buffer, newest
// first.
func (s *Session) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Err reports the error that ended the read loop, if any.
func (s *Session) Err() error {
	select {
	case <-s.done:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.readErr
	default:
		return nil
	}
}

// Done is closed when the read loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the connection down. The server drops every subscription
// this session held.
func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *Session) emit(event string, payload any) error {
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}
		s.apply(event)
	}
}

func (s *Session) apply(event inboundEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Event {
	case evtChatHistory:
		var msgs []ChatMessage
		if json.Unmarshal(event.Data, &msgs) == nil {
			s.messages = msgs
		}
	case evtReceiveMessage:
		var msg ChatMessage
		if json.Unmarshal(event.Data, &msg) == nil {
			s.messages = append(s.messages, msg)
		}
	case evtTimelineHistory:
		// Also sent after a delete: a full replace, never a delta.
		var entries []TimelineEntry
		if json.Unmarshal(event.Data, &entries) == nil {
			s.timeline = entries
		}
	case evtReceiveTimeline:
		var entry TimelineEntry
		if json.Unmarshal(event.Data, &entry) == nil {
			s.timeline = append(s.timeline, entry)
		}
	case evtNotificationHistory:
		var ns []Notification
		if json.Unmarshal(event.Data, &ns) == nil {
			s.notifications = ns
		}
	case evtReceiveNotification:
		var n Notification
		if json.Unmarshal(event.Data, &n) == nil {
			// The feed stays newest first.
			s.notifications = append([]Notification{n}, s.notifications...)
		}
	}
}
