package websocket

import (
	"testing"
	"time"

	"ai-research-be/internal/pkg/logger"
)

func newTestHub() *Hub {
	h := NewHub(nil, logger.NopLogger{})
	go h.Run()
	return h
}

func (h *Hub) clientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSendToSessionDeliversToBufferedClient(t *testing.T) {
	h := newTestHub()

	client := &Client{Hub: h, SessionID: "s1", Send: make(chan []byte, 4)}
	h.register <- client
	waitFor(t, func() bool { return h.clientCount("s1") == 1 }, "client never registered")

	h.SendToSession("s1", []byte(`{"step":"classifying"}`))

	select {
	case got := <-client.Send:
		if string(got) != `{"step":"classifying"}` {
			t.Errorf("payload = %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no payload delivered")
	}
}

func TestSendToSessionDropsFullClientWithoutPanic(t *testing.T) {
	h := newTestHub()

	// Unbuffered channel with no reader: the first send already finds the
	// buffer full.
	client := &Client{Hub: h, SessionID: "s1", Send: make(chan []byte)}
	h.register <- client
	waitFor(t, func() bool { return h.clientCount("s1") == 1 }, "client never registered")

	h.SendToSession("s1", []byte("first"))
	waitFor(t, func() bool { return h.clientCount("s1") == 0 }, "full client never unregistered")

	// The unregister handler owns closing Send, exactly once.
	select {
	case _, ok := <-client.Send:
		if ok {
			t.Fatal("expected closed channel, got payload")
		}
	case <-time.After(time.Second):
		t.Fatal("Send channel never closed")
	}

	// Sending to the now-empty session must be a no-op, not a repeat close.
	h.SendToSession("s1", []byte("second"))
}

func TestSendToSessionFansOutToAllTabs(t *testing.T) {
	h := newTestHub()

	a := &Client{Hub: h, SessionID: "s1", Send: make(chan []byte, 1)}
	b := &Client{Hub: h, SessionID: "s1", Send: make(chan []byte, 1)}
	h.register <- a
	h.register <- b
	waitFor(t, func() bool { return h.clientCount("s1") == 2 }, "clients never registered")

	h.SendToSession("s1", []byte("hello"))

	for _, c := range []*Client{a, b} {
		select {
		case got := <-c.Send:
			if string(got) != "hello" {
				t.Errorf("payload = %s", got)
			}
		case <-time.After(time.Second):
			t.Fatal("a tab missed the event")
		}
	}
}
