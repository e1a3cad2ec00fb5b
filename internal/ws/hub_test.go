package ws

import "testing"

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	hub := NewHub()

	hub.Subscribe(TicketChannel("#20250101/000001"), nil)
	if hub.Subscribers(TicketChannel("#20250101/000001")) != 1 {
		t.Fatalf("expected channel to be created")
	}

	// Joining twice is a no-op beyond re-subscription.
	hub.Subscribe(TicketChannel("#20250101/000001"), nil)
	if hub.Subscribers(TicketChannel("#20250101/000001")) != 1 {
		t.Fatalf("expected subscribe to be idempotent")
	}

	hub.Unsubscribe(TicketChannel("#20250101/000001"), nil)
	if hub.Subscribers(TicketChannel("#20250101/000001")) != 0 {
		t.Fatalf("expected channel to be removed")
	}
}

func TestHubRemoveConnectionDropsAllChannels(t *testing.T) {
	hub := NewHub()

	hub.Register(nil, ConnInfo{ConnID: "c1"})
	hub.Subscribe(TicketChannel("#20250101/000001"), nil)
	hub.Subscribe(UserChannel("budi@x.com"), nil)

	hub.RemoveConnection(nil)
	if hub.Subscribers(TicketChannel("#20250101/000001")) != 0 {
		t.Fatalf("expected ticket channel to be empty")
	}
	if hub.Subscribers(UserChannel("budi@x.com")) != 0 {
		t.Fatalf("expected user channel to be empty")
	}
	if _, ok := hub.Info(nil); ok {
		t.Fatalf("expected conn info to be dropped")
	}
}

func TestChannelNamespaces(t *testing.T) {
	if TicketChannel("#20250101/000001") == UserChannel("#20250101/000001") {
		t.Fatalf("ticket and user namespaces must not collide")
	}
	if ChannelKind(TicketChannel("x")) != "ticket" {
		t.Fatalf("expected ticket kind")
	}
	if ChannelKind(UserChannel("x")) != "user" {
		t.Fatalf("expected user kind")
	}
}
