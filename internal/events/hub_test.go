package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	e := echo.New()
	e.GET("/api/v1/events", hub.HandleWebSocket)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
}

func TestHubBroadcast(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	if err := hub.Broadcast(EventSearchPerformed, map[string]string{"query": "Pelíšky"}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	if msg.Type != EventSearchPerformed {
		t.Errorf("Type = %q, want %q", msg.Type, EventSearchPerformed)
	}
	if msg.ID == "" {
		t.Error("message has no id")
	}
	if _, err := time.Parse(time.RFC3339Nano, msg.Timestamp); err != nil {
		t.Errorf("Timestamp %q does not parse: %v", msg.Timestamp, err)
	}
	payload, ok := msg.Payload.(map[string]interface{})
	if !ok || payload["query"] != "Pelíšky" {
		t.Errorf("Payload = %v, want query Pelíšky", msg.Payload)
	}
}

func TestHubFansOutToAllClients(t *testing.T) {
	hub, server := startHub(t)
	first := dial(t, server)
	second := dial(t, server)
	waitForClients(t, hub, 2)

	if err := hub.Broadcast(EventSessionRenewed, nil); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if msg.Type != EventSessionRenewed {
			t.Errorf("Type = %q, want %q", msg.Type, EventSessionRenewed)
		}
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubPublishDeliversWithoutBlocking(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	hub.Publish("log.entry", map[string]string{"message": "session renewed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != "log.entry" {
		t.Errorf("Type = %q, want %q", msg.Type, "log.entry")
	}

	// A hub nobody runs must not stall the publisher.
	idle := NewHub(zerolog.Nop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			idle.Publish("log.entry", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on an idle hub")
	}
}
