// Package server interprets inbound client frames. Dispatch runs on the
// hub's event loop, so handlers mutate registry and history without locks.
package server

import (
	"encoding/json"
	"time"
)

// dispatch decodes a raw frame and routes it by type. Malformed frames are
// dropped with no reply; the connection stays open.
func (h *Hub) dispatch(f Frame) {
	if f.Sender == nil {
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(f.Data, &frame); err != nil {
		h.logger.Debug("dropping malformed frame", "remote_addr", f.Sender.addr, "error", err)
		return
	}

	switch frame.Type {
	case frameTypeMessage:
		h.handleChatMessage(f.Sender, frame)
	case frameTypeSetUsername:
		h.handleSetUsername(f.Sender, frame)
	case frameTypePing:
		h.handlePing(f.Sender)
	default:
		h.logger.Debug("ignoring unknown frame type", "type", frame.Type, "remote_addr", f.Sender.addr)
	}
}

// handleChatMessage validates a chat post, records it in history, and fans
// it out to every connection including the sender. Messages that are empty
// after trimming are dropped silently.
func (h *Hub) handleChatMessage(c *Client, frame inboundFrame) {
	text := normalizeText(frame.Message, maxMessageLength)
	if text == "" {
		return
	}

	msg := ChatMessage{
		Username:  h.resolveDisplayName(c, frame.Username),
		Message:   text,
		Timestamp: time.Now(),
	}
	h.history.Append(msg)
	h.broadcastEvent(chatMessageEvent{Type: eventTypeMessage, ChatMessage: msg}, nil)
}

// resolveDisplayName picks the name attached to a chat post: the name
// supplied on the frame, else the connection's stored username, else
// "Anonymous".
func (h *Hub) resolveDisplayName(c *Client, supplied string) string {
	if name := normalizeText(supplied, maxUsernameLength); name != "" {
		return name
	}
	if c.username != "" {
		return c.username
	}
	return anonymousName
}

// handleSetUsername binds a display name to the connection. The first
// successful assignment announces the join to every other connection;
// later changes only confirm to the sender.
func (h *Hub) handleSetUsername(c *Client, frame inboundFrame) {
	name := normalizeText(frame.Username, maxUsernameLength)
	if name == "" {
		return
	}

	previous := c.username
	c.username = name
	h.sendEvent(c, usernameSetEvent{Type: eventTypeUsernameSet, Username: name})

	if previous == "" {
		h.broadcastEvent(systemMessageEvent{
			Type:      eventTypeSystemMessage,
			Message:   name + " joined the chat",
			Timestamp: time.Now(),
		}, c)
	}
	h.broadcastOnlineCount()
}

// handlePing replies to the sender only, with the current server time.
func (h *Hub) handlePing(c *Client) {
	h.sendEvent(c, pongEvent{Type: eventTypePong, Timestamp: time.Now()})
}
