package unit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castwire/castwire/internal/server"
)

func TestDispatchChatMessageBroadcastToAll(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)
	b := addClient(t, hub)
	readEventOfType(t, a, "online_count")

	sendFrame(t, hub, a, map[string]any{"type": "message", "message": "hi", "username": "Alice"})

	for _, c := range []*server.Client{a, b} {
		event := readEventOfType(t, c, "message")
		assert.Equal(t, "Alice", event["username"])
		assert.Equal(t, "hi", event["message"])
		assert.NotEmpty(t, event["timestamp"])
	}
}

func TestDispatchChatMessageTrimmed(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	sendFrame(t, hub, a, map[string]any{"type": "message", "message": "  padded  "})

	event := readEventOfType(t, a, "message")
	assert.Equal(t, "padded", event["message"])
}

// Whitespace rejection: a message that is empty after trimming is neither
// broadcast nor recorded.
func TestDispatchWhitespaceMessageDropped(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	sendFrame(t, hub, a, map[string]any{"type": "message", "message": "   \n\t  "})
	assertNoEvent(t, a)

	b := server.NewClient(nil, hub, "127.0.0.1:23456")
	hub.GetRegisterChan() <- b
	readEvent(t, b) // connected
	history := readEvent(t, b)
	assert.Empty(t, history["messages"])
}

func TestDispatchLongMessageTruncated(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	sendFrame(t, hub, a, map[string]any{"type": "message", "message": strings.Repeat("x", 600)})

	event := readEventOfType(t, a, "message")
	assert.Len(t, event["message"], 500)
}

func TestDispatchDisplayNameFallbackChain(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	// No name anywhere: Anonymous.
	sendFrame(t, hub, a, map[string]any{"type": "message", "message": "one"})
	assert.Equal(t, "Anonymous", readEventOfType(t, a, "message")["username"])

	// Stored username wins over nothing.
	sendFrame(t, hub, a, map[string]any{"type": "set_username", "username": "Alice"})
	readEventOfType(t, a, "username_set")
	sendFrame(t, hub, a, map[string]any{"type": "message", "message": "two"})
	assert.Equal(t, "Alice", readEventOfType(t, a, "message")["username"])

	// Per-frame name wins over the stored one, truncated to 20 runes.
	sendFrame(t, hub, a, map[string]any{
		"type": "message", "message": "three",
		"username": strings.Repeat("b", 30),
	})
	assert.Equal(t, strings.Repeat("b", 20), readEventOfType(t, a, "message")["username"])
}

func TestDispatchSetUsernameConfirmsToSender(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	sendFrame(t, hub, a, map[string]any{"type": "set_username", "username": "  Alice  "})

	event := readEventOfType(t, a, "username_set")
	assert.Equal(t, "Alice", event["username"])
	assert.Equal(t, "Alice", a.Username())
}

func TestDispatchEmptyUsernameIgnored(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	sendFrame(t, hub, a, map[string]any{"type": "set_username", "username": "   "})
	sendFrame(t, hub, a, map[string]any{"type": "set_username"})

	assertNoEvent(t, a)
	assert.Empty(t, a.Username())
}

// Single join announcement: only the first successful assignment announces,
// and only to the other connections.
func TestDispatchJoinAnnouncedOnce(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)
	b := addClient(t, hub)
	readEventOfType(t, a, "online_count")

	sendFrame(t, hub, b, map[string]any{"type": "set_username", "username": "Bob"})

	joined := readEventOfType(t, a, "system_message")
	assert.Equal(t, "Bob joined the chat", joined["message"])

	confirm := readEventOfType(t, b, "username_set")
	assert.Equal(t, "Bob", confirm["username"])
	readEventOfType(t, b, "online_count")
	assertNoEvent(t, b)

	// Renaming confirms to the sender but announces nothing.
	sendFrame(t, hub, b, map[string]any{"type": "set_username", "username": "Bobby"})
	readEventOfType(t, b, "username_set")
	readEventOfType(t, a, "online_count")
	assertNoEvent(t, a)
}

// Ping idempotence: every ping yields exactly one pong to the sender, with a
// timestamp no earlier than the ping.
func TestDispatchPingPong(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)
	b := addClient(t, hub)
	readEventOfType(t, a, "online_count")

	before := time.Now()
	sendFrame(t, hub, a, map[string]any{"type": "ping"})

	pong := readEventOfType(t, a, "pong")
	stamp, err := time.Parse(time.RFC3339Nano, pong["timestamp"].(string))
	require.NoError(t, err)
	assert.False(t, stamp.Before(before))

	assertNoEvent(t, a)
	assertNoEvent(t, b)
}

func TestDispatchMalformedFrameDropped(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	hub.GetFrameChan() <- server.Frame{Sender: a, Data: []byte("{not json")}

	assertNoEvent(t, a)
	assert.Equal(t, 1, hub.Count())
}

func TestDispatchUnknownFrameTypeIgnored(t *testing.T) {
	hub := startHub(t)
	a := addClient(t, hub)

	sendFrame(t, hub, a, map[string]any{"type": "teleport", "message": "beam me up"})

	assertNoEvent(t, a)
	assert.Equal(t, 1, hub.Count())
}
