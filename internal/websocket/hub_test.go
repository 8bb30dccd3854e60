package websocket

import (
	"testing"
)

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:   "client-1",
		Send: make(chan *Message, 1),
		Hub:  hub,
	}

	hub.registerClient(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	hub.unregisterClient(client)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected no clients")
	}
}

func TestHubBroadcastReachesClients(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:   "client-1",
		Send: make(chan *Message, 1),
		Hub:  hub,
	}

	hub.registerClient(client)

	hub.broadcastMessage(&Message{Type: "console_line", Payload: "Done (3.2s)!"})

	select {
	case received := <-client.Send:
		if received.Type != "console_line" {
			t.Fatalf("expected console_line message")
		}
	default:
		t.Fatalf("expected message to be delivered")
	}
}

func TestHubDropsWhenClientSlow(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:   "client-1",
		Send: make(chan *Message, 1),
		Hub:  hub,
	}

	hub.registerClient(client)

	hub.broadcastMessage(&Message{Type: "console_line", Payload: "first"})
	hub.broadcastMessage(&Message{Type: "console_line", Payload: "second"})

	received := <-client.Send
	if received.Payload != "first" {
		t.Fatalf("expected first queued message, got %v", received.Payload)
	}
	select {
	case extra := <-client.Send:
		t.Fatalf("expected overflow to be dropped, got %v", extra.Payload)
	default:
	}
}
