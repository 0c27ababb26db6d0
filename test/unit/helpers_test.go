// Package unit contains unit tests for individual components of the
// Castwire relay.
//
// Hub behavior is tested without network transport: clients are created with
// a nil connection, registered through the hub's channels, and observed via
// their outbound queues.
package unit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/castwire/castwire/internal/server"
	"github.com/castwire/castwire/test/testhelpers"
)

// startHub runs a hub with test-safe timers and shuts it down with the test.
func startHub(t *testing.T) *server.Hub {
	t.Helper()
	return testhelpers.StartTestHub(t, testhelpers.NewTestConfig())
}

// addClient registers a transport-less client and consumes its accept
// sequence (connected, history, online_count).
func addClient(t *testing.T, hub *server.Hub) *server.Client {
	t.Helper()
	c := server.NewClient(nil, hub, "127.0.0.1:12345")
	hub.GetRegisterChan() <- c

	for _, want := range []string{"connected", "history", "online_count"} {
		event := readEvent(t, c)
		if event["type"] != want {
			t.Fatalf("expected %q event, got %v", want, event["type"])
		}
	}
	return c
}

// readEvent pops the next queued event off a client's outbound buffer.
func readEvent(t *testing.T, c *server.Client) map[string]any {
	t.Helper()
	select {
	case payload, ok := <-c.GetSendChan():
		if !ok {
			t.Fatal("send channel closed while waiting for event")
		}
		var event map[string]any
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("failed to decode event %q: %v", payload, err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// readEventOfType skips interleaved events until one of the wanted type
// arrives.
func readEventOfType(t *testing.T, c *server.Client, eventType string) map[string]any {
	t.Helper()
	for i := 0; i < 16; i++ {
		event := readEvent(t, c)
		if event["type"] == eventType {
			return event
		}
	}
	t.Fatalf("no %q event within 16 reads", eventType)
	return nil
}

// sendFrame injects a raw frame from c into the hub's dispatch loop.
func sendFrame(t *testing.T, hub *server.Hub, c *server.Client, frame map[string]any) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	hub.GetFrameChan() <- server.Frame{Sender: c, Data: data}
}

// assertNoEvent verifies that nothing is queued for the client.
func assertNoEvent(t *testing.T, c *server.Client) {
	t.Helper()
	select {
	case payload := <-c.GetSendChan():
		t.Fatalf("unexpected event queued: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}
