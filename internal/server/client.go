// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second

	// sendQueueSize is the per-connection outbound buffer. A client whose
	// queue is full at broadcast time is dropped and disconnected.
	sendQueueSize = 256
)

// Client represents one live WebSocket connection to the relay. The username
// field is mutated only on the hub's event loop; the liveness flag is shared
// with the transport's pong handler and therefore atomic.
type Client struct {
	id          string
	conn        *websocket.Conn
	hub         *Hub
	addr        string
	username    string
	connectedAt time.Time
	alive       atomic.Bool
	send        chan []byte
	ping        chan struct{}
	limiter     *rate.Limiter
}

// NewClient creates a Client for the given connection. The id is a fresh
// UUID; ids are never reused within a process lifetime.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxFrameSize)
	}

	c := &Client{
		id:          uuid.New().String(),
		conn:        conn,
		hub:         hub,
		addr:        addr,
		connectedAt: time.Now(),
		send:        make(chan []byte, sendQueueSize),
		ping:        make(chan struct{}, 1),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
	}
	c.alive.Store(true)
	return c
}

// ID returns the client's opaque identifier.
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the best-effort client address captured at accept time.
func (c *Client) RemoteAddr() string {
	return c.addr
}

// Username returns the client's display name, or "" if none was set.
func (c *Client) Username() string {
	return c.username
}

// ConnectedAt returns the time the connection was accepted.
func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}

// GetSendChan returns the client's outbound queue for reading queued events.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// requestPing asks the write pump to emit a liveness probe. Safe to call
// even when the pump is gone; a pending request is never queued twice.
func (c *Client) requestPing() {
	select {
	case c.ping <- struct{}{}:
	default:
	}
}

// terminate forcibly closes the underlying connection, which unblocks the
// read pump and drives the normal close path.
func (c *Client) terminate() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.hub.logger.Debug("error terminating connection", "remote_addr", c.addr, "error", err)
	}
}

// setupReadConnection configures the read deadline and the pong handler. The
// pong handler is the only place the liveness flag is set true, so a silent
// connection cannot survive two heartbeat sweeps.
func (c *Client) setupReadConnection() {
	deadline := 2 * c.hub.cfg.HeartbeatInterval
	if err := c.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		c.hub.logger.Debug("error setting read deadline", "remote_addr", c.addr, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})
}

// logReadError records a read failure with an appropriate severity.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.hub.logger.Warn("frame exceeded maximum size", "remote_addr", c.addr, "limit", c.hub.cfg.MaxFrameSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.hub.logger.Debug("client disconnected", "remote_addr", c.addr, "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.hub.logger.Debug("connection closed", "remote_addr", c.addr, "error", err)
	default:
		c.hub.logger.Warn("websocket read error", "remote_addr", c.addr, "error", err)
	}
}

// readPump reads frames from the connection and forwards them to the hub
// until the connection dies. It runs as one goroutine per client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.terminate()
	}()

	c.setupReadConnection()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.Allow() {
			c.hub.logger.Warn("rate limit exceeded, discarding frame", "remote_addr", c.addr)
			continue
		}

		select {
		case c.hub.frames <- Frame{Sender: c, Data: data}:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// writePump serializes all writes to the connection: queued events, liveness
// probes, and the final close frame once the send queue is closed.
func (c *Client) writePump() {
	defer c.terminate()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.writeClose()
				return
			}
			if !c.writeMessage(message) {
				return
			}
		case <-c.ping:
			if !c.writePing() {
				return
			}
		}
	}
}

func (c *Client) writeMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.hub.logger.Debug("error setting write deadline", "remote_addr", c.addr, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.hub.logger.Debug("error writing message", "remote_addr", c.addr, "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.hub.logger.Debug("error writing ping", "remote_addr", c.addr, "error", err)
		}
		return false
	}
	return true
}

// writeClose sends a normal-closure frame so well-behaved peers can finish
// the closing handshake.
func (c *Client) writeClose() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, message); err != nil && !isExpectedCloseError(err) {
		c.hub.logger.Debug("error writing close frame", "remote_addr", c.addr, "error", err)
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
