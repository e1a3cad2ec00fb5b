package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"helpdesk-service/internal/auth"
	"helpdesk-service/internal/mocks"
	"helpdesk-service/internal/models"
	"helpdesk-service/internal/rabbitmq"
	"helpdesk-service/internal/repositories"
)

// In-memory repositories backing the protocol tests. Ids are assigned
// in insertion order, like the serial columns they stand in for.

type fakeChatRepo struct {
	mu     sync.Mutex
	nextID int64
	rooms  map[string][]models.ChatMessage
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{rooms: make(map[string][]models.ChatMessage)}
}

func (f *fakeChatRepo) AppendMessage(_ context.Context, room, name, sender, role, message string) (models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := models.ChatMessage{
		ID:        f.nextID,
		Room:      room,
		Name:      name,
		Sender:    sender,
		Role:      role,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	f.rooms[room] = append(f.rooms[room], msg)
	return msg, nil
}

func (f *fakeChatRepo) ListMessages(_ context.Context, room string) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ChatMessage, len(f.rooms[room]))
	copy(out, f.rooms[room])
	return out, nil
}

func (f *fakeChatRepo) count(room string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[room])
}

type fakeTimelineRepo struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[string][]models.TimelineEntry
}

func newFakeTimelineRepo() *fakeTimelineRepo {
	return &fakeTimelineRepo{tickets: make(map[string][]models.TimelineEntry)}
}

func (f *fakeTimelineRepo) AppendEntry(_ context.Context, ticket, title, subtitle string) (models.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	entry := models.TimelineEntry{
		ID:        f.nextID,
		Ticket:    ticket,
		Title:     title,
		Subtitle:  subtitle,
		CreatedAt: time.Now().UTC(),
	}
	f.tickets[ticket] = append(f.tickets[ticket], entry)
	return entry, nil
}

func (f *fakeTimelineRepo) ListEntries(_ context.Context, ticket string) ([]models.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TimelineEntry, len(f.tickets[ticket]))
	copy(out, f.tickets[ticket])
	return out, nil
}

func (f *fakeTimelineRepo) DeleteEntry(_ context.Context, ticket string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.tickets[ticket]
	for i, entry := range entries {
		if entry.ID == id {
			f.tickets[ticket] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return repositories.ErrEntryNotFound
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	nextID    int64
	receivers map[string][]models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{receivers: make(map[string][]models.Notification)}
}

func (f *fakeNotificationRepo) AppendNotification(_ context.Context, receiver, message, ticket string) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n := models.Notification{
		ID:        f.nextID,
		Receiver:  receiver,
		Message:   message,
		Ticket:    ticket,
		CreatedAt: time.Now().UTC(),
	}
	f.receivers[receiver] = append(f.receivers[receiver], n)
	return n, nil
}

func (f *fakeNotificationRepo) ListRecent(_ context.Context, receiver string, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.receivers[receiver]
	var out []models.Notification
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

type testEnv struct {
	srv           *httptest.Server
	chats         *fakeChatRepo
	timeline      *fakeTimelineRepo
	notifications *fakeNotificationRepo
	verifier      *auth.Verifier
}

func newTestEnv(t *testing.T, publisher rabbitmq.Publisher) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		chats:         newFakeChatRepo(),
		timeline:      newFakeTimelineRepo(),
		notifications: newFakeNotificationRepo(),
		verifier:      auth.NewVerifier("test-secret"),
	}

	hub := NewHub()
	handler := NewSocketHandler(hub, env.chats, env.timeline, env.notifications, env.verifier, publisher, zerolog.Nop(), 10)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	env.srv = httptest.NewServer(router)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) dial(t *testing.T, identity auth.Identity) *websocket.Conn {
	t.Helper()
	token, err := e.verifier.Sign(identity, time.Minute)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	frame, err := json.Marshal(models.Envelope{Event: event, Data: payload})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// readEvent discards frames until one matches the wanted event name.
func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", want)
		var event models.InboundEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		if event.Event == want {
			return event.Data
		}
	}
}

// expectSilence asserts that no frame arrives. The read deadline ends
// the connection's usefulness, so call it last on a given conn.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", raw)
	}
}

const room = "#20250101/000123"

var budi = auth.Identity{Email: "budi@x.com", Name: "Budi", Role: models.RoleUser}
var sari = auth.Identity{Email: "sari@x.com", Name: "Sari", Role: models.RolePIC}

func TestJoinRoomReplaysHistoryInOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for _, text := range []string{"first", "second", "third"} {
		_, err := env.chats.AppendMessage(ctx, room, "Budi", "budi@x.com", models.RoleUser, text)
		require.NoError(t, err)
	}
	_, err := env.timeline.AppendEntry(ctx, room, "Ticket created", "")
	require.NoError(t, err)
	_, err = env.timeline.AppendEntry(ctx, room, "Assigned", "PIC Sari")
	require.NoError(t, err)

	conn := env.dial(t, budi)
	emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: room})

	var msgs []models.ChatMessage
	require.NoError(t, json.Unmarshal(readEvent(t, conn, models.EventChatHistory), &msgs))
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Message)
	require.Equal(t, "second", msgs[1].Message)
	require.Equal(t, "third", msgs[2].Message)
	require.True(t, msgs[0].ID < msgs[1].ID && msgs[1].ID < msgs[2].ID)

	var entries []models.TimelineEntry
	require.NoError(t, json.Unmarshal(readEvent(t, conn, models.EventTimelineHistory), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "Ticket created", entries[0].Title)
	require.Equal(t, "Assigned", entries[1].Title)
}

func TestJoinUnknownRoomReplaysEmptyHistories(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, budi)
	emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: "#20990101/999999"})

	require.JSONEq(t, "[]", string(readEvent(t, conn, models.EventChatHistory)))
	require.JSONEq(t, "[]", string(readEvent(t, conn, models.EventTimelineHistory)))
}

func TestSendMessagePersistsThenBroadcastsToSender(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, budi)
	emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, conn, models.EventTimelineHistory)

	emit(t, conn, models.EventSendMessage, models.SendMessagePayload{
		Room: room, Name: "Budi", Sender: "budi@x.com", Role: models.RoleUser, Message: "Halo",
	})

	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(readEvent(t, conn, models.EventReceiveMessage), &msg))
	require.Equal(t, room, msg.Room)
	require.Equal(t, "Budi", msg.Name)
	require.Equal(t, "budi@x.com", msg.Sender)
	require.Equal(t, models.RoleUser, msg.Role)
	require.Equal(t, "Halo", msg.Message)
	require.Greater(t, msg.ID, int64(0))
	require.False(t, msg.CreatedAt.IsZero())
	require.Equal(t, 1, env.chats.count(room))
}

func TestSendMessageMissingFieldIsNoOp(t *testing.T) {
	env := newTestEnv(t, nil)
	valid := models.SendMessagePayload{
		Room: room, Name: "Budi", Sender: "budi@x.com", Role: models.RoleUser, Message: "Halo",
	}

	blank := func(field string) models.SendMessagePayload {
		p := valid
		switch field {
		case "room":
			p.Room = ""
		case "name":
			p.Name = ""
		case "sender":
			p.Sender = ""
		case "role":
			p.Role = ""
		case "message":
			p.Message = ""
		}
		return p
	}

	for _, field := range []string{"room", "name", "sender", "role", "message"} {
		t.Run(field, func(t *testing.T) {
			conn := env.dial(t, budi)
			emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
			readEvent(t, conn, models.EventTimelineHistory)

			emit(t, conn, models.EventSendMessage, blank(field))
			expectSilence(t, conn)
			require.Equal(t, 0, env.chats.count(room))
		})
	}
}

func TestSendMessageSenderMismatchIsDropped(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, sari)
	emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, conn, models.EventTimelineHistory)

	emit(t, conn, models.EventSendMessage, models.SendMessagePayload{
		Room: room, Name: "Budi", Sender: "budi@x.com", Role: models.RoleUser, Message: "spoofed",
	})
	expectSilence(t, conn)
	require.Equal(t, 0, env.chats.count(room))
}

func TestRoomIsolation(t *testing.T) {
	env := newTestEnv(t, nil)
	roomB := "#20250102/000456"

	connA := env.dial(t, budi)
	emit(t, connA, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, connA, models.EventTimelineHistory)

	connB := env.dial(t, sari)
	emit(t, connB, models.EventJoinRoom, models.JoinRoomPayload{Room: roomB})
	readEvent(t, connB, models.EventTimelineHistory)

	emit(t, connA, models.EventSendMessage, models.SendMessagePayload{
		Room: room, Name: "Budi", Sender: "budi@x.com", Role: models.RoleUser, Message: "only room A",
	})
	readEvent(t, connA, models.EventReceiveMessage)

	expectSilence(t, connB)
}

func TestSendTimelineBroadcastsPersistedEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, sari)
	emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, conn, models.EventTimelineHistory)

	emit(t, conn, models.EventSendTimeline, models.SendTimelinePayload{
		Ticket: room, Title: "Status changed", Subtitle: "In progress",
	})

	var entry models.TimelineEntry
	require.NoError(t, json.Unmarshal(readEvent(t, conn, models.EventReceiveTimeline), &entry))
	require.Equal(t, room, entry.Ticket)
	require.Equal(t, "Status changed", entry.Title)
	require.Equal(t, "In progress", entry.Subtitle)
	require.Greater(t, entry.ID, int64(0))
}

func TestDeleteTimelineBroadcastsFullReplace(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e1, err := env.timeline.AppendEntry(ctx, room, "created", "")
	require.NoError(t, err)
	e2, err := env.timeline.AppendEntry(ctx, room, "assigned", "")
	require.NoError(t, err)
	e3, err := env.timeline.AppendEntry(ctx, room, "resolved", "")
	require.NoError(t, err)

	conn := env.dial(t, sari)
	emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, conn, models.EventTimelineHistory)

	emit(t, conn, models.EventDeleteTimeline, models.DeleteTimelinePayload{Ticket: room, ID: e2.ID})

	var entries []models.TimelineEntry
	require.NoError(t, json.Unmarshal(readEvent(t, conn, models.EventTimelineHistory), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, e1.ID, entries[0].ID)
	require.Equal(t, e3.ID, entries[1].ID)
}

func TestNotificationHistoryBoundedNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		_, err := env.notifications.AppendNotification(ctx, "budi@x.com", "Ticket updated", room)
		require.NoError(t, err)
	}

	conn := env.dial(t, budi)
	emit(t, conn, models.EventJoinNotification, models.JoinNotificationPayload{Receiver: "budi@x.com"})

	var ns []models.Notification
	require.NoError(t, json.Unmarshal(readEvent(t, conn, models.EventNotificationHistory), &ns))
	require.Len(t, ns, 10)
	for i := 1; i < len(ns); i++ {
		require.Greater(t, ns[i-1].ID, ns[i].ID)
	}
	require.Equal(t, int64(15), ns[0].ID)
}

func TestSendNotificationBroadcastsAndPublishes(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, rabbitmq.RoutingKeyNotificationCreated, mock.Anything).Return(nil).Once()

	env := newTestEnv(t, publisher)

	receiver := env.dial(t, budi)
	emit(t, receiver, models.EventJoinNotification, models.JoinNotificationPayload{Receiver: "budi@x.com"})
	readEvent(t, receiver, models.EventNotificationHistory)

	sender := env.dial(t, sari)
	emit(t, sender, models.EventSendNotification, models.SendNotificationPayload{
		Receiver: "budi@x.com", Message: "Your ticket got a reply", Ticket: room,
	})

	var n models.Notification
	require.NoError(t, json.Unmarshal(readEvent(t, receiver, models.EventReceiveNotification), &n))
	require.Equal(t, "budi@x.com", n.Receiver)
	require.Equal(t, "Your ticket got a reply", n.Message)
	require.Equal(t, room, n.Ticket)
	require.Greater(t, n.ID, int64(0))

	publisher.AssertExpectations(t)
}

func TestJoinNotificationReceiverMismatchIsDropped(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, sari)
	emit(t, conn, models.EventJoinNotification, models.JoinNotificationPayload{Receiver: "budi@x.com"})
	expectSilence(t, conn)
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, budi)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// The read loop keeps the connection alive and serves later events.
	emit(t, conn, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	require.JSONEq(t, "[]", string(readEvent(t, conn, models.EventChatHistory)))
}

func TestEndToEndTwoClientsReceiveBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)

	connA := env.dial(t, budi)
	emit(t, connA, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, connA, models.EventTimelineHistory)

	connB := env.dial(t, sari)
	emit(t, connB, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, connB, models.EventTimelineHistory)

	emit(t, connA, models.EventSendMessage, models.SendMessagePayload{
		Room: room, Name: "Budi", Sender: "budi@x.com", Role: models.RoleUser, Message: "Halo",
	})

	for _, conn := range []*websocket.Conn{connA, connB} {
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(readEvent(t, conn, models.EventReceiveMessage), &msg))
		require.Equal(t, "Halo", msg.Message)
		require.Equal(t, "budi@x.com", msg.Sender)
		require.Greater(t, msg.ID, int64(0))
	}
}

// slowFirstInsertChatRepo assigns ids in call order but returns the
// first insert late, exposing any gap between persist and broadcast.
type slowFirstInsertChatRepo struct {
	*fakeChatRepo
	delay time.Duration
	once  sync.Once
}

func (r *slowFirstInsertChatRepo) AppendMessage(ctx context.Context, room, name, sender, role, message string) (models.ChatMessage, error) {
	msg, err := r.fakeChatRepo.AppendMessage(ctx, room, name, sender, role, message)
	r.once.Do(func() { time.Sleep(r.delay) })
	return msg, err
}

func TestBroadcastOrderMatchesPersistOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	chats := &slowFirstInsertChatRepo{fakeChatRepo: newFakeChatRepo(), delay: 300 * time.Millisecond}
	verifier := auth.NewVerifier("test-secret")
	handler := NewSocketHandler(NewHub(), chats, newFakeTimelineRepo(), newFakeNotificationRepo(), verifier, nil, zerolog.Nop(), 10)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	env := &testEnv{srv: srv, verifier: verifier}

	observer := env.dial(t, budi)
	emit(t, observer, models.EventJoinRoom, models.JoinRoomPayload{Room: room})
	readEvent(t, observer, models.EventTimelineHistory)

	first := env.dial(t, budi)
	second := env.dial(t, sari)

	emit(t, first, models.EventSendMessage, models.SendMessagePayload{
		Room: room, Name: "Budi", Sender: "budi@x.com", Role: models.RoleUser, Message: "persisted first",
	})
	time.Sleep(50 * time.Millisecond)
	emit(t, second, models.EventSendMessage, models.SendMessagePayload{
		Room: room, Name: "Sari", Sender: "sari@x.com", Role: models.RolePIC, Message: "persisted second",
	})

	// The observer must see the broadcasts in persisted-id order even
	// though the second submit raced the first's slow insert.
	var a, b models.ChatMessage
	require.NoError(t, json.Unmarshal(readEvent(t, observer, models.EventReceiveMessage), &a))
	require.NoError(t, json.Unmarshal(readEvent(t, observer, models.EventReceiveMessage), &b))
	require.Less(t, a.ID, b.ID)
	require.Equal(t, "persisted first", a.Message)
	require.Equal(t, "persisted second", b.Message)
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, nil)
	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}
