// Package testhelpers provides common utilities for testing the Castwire
// relay: test servers, WebSocket dialing, and event decoding shared across
// unit and integration tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/castwire/castwire/internal/server"
)

// NewTestConfig returns a config suitable for tests: any origin allowed and
// timers short enough that sweeps never fire unless a test asks for it.
func NewTestConfig() server.Config {
	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	cfg.HeartbeatInterval = time.Hour
	cfg.StatusLogInterval = time.Hour
	return cfg
}

// StartTestHub creates a hub from cfg, runs its event loop, and registers a
// cleanup that shuts it down when the test finishes.
func StartTestHub(t *testing.T, cfg server.Config) *server.Hub {
	t.Helper()
	hub := server.NewHub(cfg, nil)
	go hub.Run()
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
	})
	return hub
}

// StartTestServer runs hub routes on an httptest server and returns it
// together with the derived WebSocket URL.
func StartTestServer(t *testing.T, hub *server.Hub) (*httptest.Server, string) {
	t.Helper()
	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return ts, wsURL
}

// ConnectWebSocket dials the relay with an Origin header derived from the
// URL. The caller owns the returned connection.
func ConnectWebSocket(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	origin := "http" + strings.TrimPrefix(wsURL, "ws")
	origin = strings.TrimSuffix(origin, "/ws")

	header := http.Header{"Origin": []string{origin}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadEvent reads the next JSON event from the connection, failing the test
// if nothing arrives within the timeout.
func ReadEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}

	var event map[string]any
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event %q: %v", data, err)
	}
	return event
}

// WaitForEvent reads events until one with the given type arrives, skipping
// interleaved events such as online_count updates.
func WaitForEvent(t *testing.T, conn *websocket.Conn, eventType string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %q event", eventType)
		}
		event := ReadEvent(t, conn, remaining)
		if event["type"] == eventType {
			return event
		}
	}
}

// AwaitWelcome consumes the accept sequence (connected, history,
// online_count) and returns the assigned client id and the replayed history.
func AwaitWelcome(t *testing.T, conn *websocket.Conn) (clientID string, history []any) {
	t.Helper()

	connected := ReadEvent(t, conn, 2*time.Second)
	if connected["type"] != "connected" {
		t.Fatalf("expected connected event first, got %v", connected["type"])
	}
	clientID, _ = connected["clientId"].(string)

	historyEvent := ReadEvent(t, conn, 2*time.Second)
	if historyEvent["type"] != "history" {
		t.Fatalf("expected history event second, got %v", historyEvent["type"])
	}
	history, _ = historyEvent["messages"].([]any)

	count := ReadEvent(t, conn, 2*time.Second)
	if count["type"] != "online_count" {
		t.Fatalf("expected online_count event third, got %v", count["type"])
	}

	return clientID, history
}

// SendFrame marshals and sends a client frame.
func SendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to send frame: %v", err)
	}
}
