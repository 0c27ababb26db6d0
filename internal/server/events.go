// Package server defines the JSON frame types exchanged between clients and
// the relay, and helpers shared by dispatch and broadcast logic.
package server

import (
	"strings"
	"time"
)

// Limits applied to inbound chat frames. Both counts are in runes.
const (
	maxMessageLength  = 500
	maxUsernameLength = 20
)

// anonymousName is the display name used when neither the frame nor the
// connection carries a username.
const anonymousName = "Anonymous"

// Inbound frame types accepted from clients.
const (
	frameTypeMessage     = "message"
	frameTypeSetUsername = "set_username"
	frameTypePing        = "ping"
)

// Outbound event types sent to clients.
const (
	eventTypeConnected     = "connected"
	eventTypeHistory       = "history"
	eventTypeOnlineCount   = "online_count"
	eventTypeMessage       = "message"
	eventTypeUsernameSet   = "username_set"
	eventTypeSystemMessage = "system_message"
	eventTypePong          = "pong"
	eventTypeShutdown      = "server_shutdown"
)

// Frame is a raw inbound frame paired with the client that sent it. Frames
// are handed to the hub's event loop for dispatch.
type Frame struct {
	Sender *Client
	Data   []byte
}

// inboundFrame is the decoded shape of a client frame. Unknown fields are
// ignored; the Type field discriminates the operation.
type inboundFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// ChatMessage is one accepted chat post. Entries are immutable once
// constructed and always satisfy the length limits above.
type ChatMessage struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type connectedEvent struct {
	Type       string    `json:"type"`
	ClientID   string    `json:"clientId"`
	ServerTime time.Time `json:"serverTime"`
	Message    string    `json:"message"`
}

type historyEvent struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

type onlineCountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type chatMessageEvent struct {
	Type string `json:"type"`
	ChatMessage
}

type usernameSetEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type systemMessageEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type pongEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type shutdownEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// normalizeText trims surrounding whitespace and truncates to at most max
// runes. Validation failures surface as an empty result.
func normalizeText(s string, max int) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > max {
		return string(runes[:max])
	}
	return s
}
