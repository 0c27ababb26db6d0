// Package server coordinates client registration, protocol dispatch, message
// broadcast, and connection cleanup for the Castwire relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Hub owns the process-wide mutable state: the connection registry and the
// message history. All mutation happens on the event loop in Run, one event
// at a time, so dispatch logic never contends for shared state.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	registry *Registry
	history  *History

	register   chan *Client
	unregister chan *Client
	frames     chan Frame

	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewHub creates a Hub ready to manage connections. A nil logger falls back
// to slog.Default.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg.sanitize(),
		logger:     logger,
		registry:   NewRegistry(),
		history:    NewHistory(HistoryCapacity),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		frames:     make(chan Frame),
		startedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetFrameChan returns the channel inbound frames are dispatched through.
func (h *Hub) GetFrameChan() chan<- Frame {
	return h.frames
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	return h.registry.Count()
}

// Uptime returns how long the hub has been running.
func (h *Hub) Uptime() time.Duration {
	return time.Since(h.startedAt)
}

// Run starts the hub's event loop, handling registration, frame dispatch,
// heartbeat sweeps, and cleanup. Call it in its own goroutine; it runs until
// Shutdown is invoked.
func (h *Hub) Run() {
	defer close(h.done)

	heartbeat := time.NewTicker(h.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	status := time.NewTicker(h.cfg.StatusLogInterval)
	defer status.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.closeClient(client)

		case frame := <-h.frames:
			h.dispatch(frame)

		case <-heartbeat.C:
			h.sweepConnections()

		case <-status.C:
			h.logger.Info("relay status",
				"clients", h.registry.Count(),
				"history", h.history.Len(),
				"uptime", h.Uptime().Round(time.Second))
		}
	}
}

// handleRegister admits a new connection: it is added to the registry, told
// its id, sent the history snapshot, and the new online count is announced
// to everyone including the newcomer.
func (h *Hub) handleRegister(c *Client) {
	if c == nil {
		h.logger.Warn("received nil client registration, skipping")
		return
	}

	h.registry.Add(c)
	h.logger.Info("client connected", "client_id", c.id, "remote_addr", c.addr, "clients", h.registry.Count())

	if c.conn != nil {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			c.writePump()
		}()
		go func() {
			defer h.wg.Done()
			c.readPump()
		}()
	}

	h.sendEvent(c, connectedEvent{
		Type:       eventTypeConnected,
		ClientID:   c.id,
		ServerTime: time.Now(),
		Message:    "Connected to chat server",
	})
	h.sendEvent(c, historyEvent{
		Type:     eventTypeHistory,
		Messages: h.history.Snapshot(),
	})
	h.broadcastOnlineCount()
}

// closeClient runs the close path for a connection: announce the departure
// if it had a username, drop it from the registry, and re-announce the
// online count. It is idempotent; late unregister events for an already
// evicted client are no-ops.
func (h *Hub) closeClient(c *Client) {
	if c == nil || !h.registry.Remove(c.id) {
		return
	}

	close(c.send)
	c.terminate()

	if c.username != "" {
		h.broadcastEvent(systemMessageEvent{
			Type:      eventTypeSystemMessage,
			Message:   c.username + " left the chat",
			Timestamp: time.Now(),
		}, nil)
	}
	h.broadcastOnlineCount()

	h.logger.Info("client disconnected", "client_id", c.id, "remote_addr", c.addr, "clients", h.registry.Count())
}

// trySend queues a payload on the client's outbound buffer without blocking.
// It reports false when the buffer is full or already closed.
func (h *Hub) trySend(c *Client, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// sendEvent serializes an event and queues it for a single client.
func (h *Hub) sendEvent(c *Client, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "error", err)
		return
	}
	if !h.trySend(c, payload) {
		h.logger.Warn("dropping event for slow client", "client_id", c.id, "remote_addr", c.addr)
	}
}

// broadcast sends an already-serialized payload to every registered client
// except exclude. Per-recipient failures are independent: a full outbound
// buffer never aborts delivery to the others, but the slow client itself is
// disconnected.
func (h *Hub) broadcast(payload []byte, exclude *Client) {
	var failed []*Client
	h.registry.ForEach(func(c *Client) {
		if c == exclude {
			return
		}
		if !h.trySend(c, payload) {
			failed = append(failed, c)
		}
	})

	for _, c := range failed {
		h.logger.Warn("disconnecting slow client", "client_id", c.id, "remote_addr", c.addr)
		h.closeClient(c)
	}
}

// broadcastEvent serializes an event once and fans it out.
func (h *Hub) broadcastEvent(event any, exclude *Client) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "error", err)
		return
	}
	h.broadcast(payload, exclude)
}

// broadcastOnlineCount announces the current connection count to everyone.
func (h *Hub) broadcastOnlineCount() {
	h.broadcastEvent(onlineCountEvent{
		Type:  eventTypeOnlineCount,
		Count: h.registry.Count(),
	}, nil)
}

// shutdownClients notifies every connection that the relay is going away and
// requests a normal closure on each. The write pumps drain any queued events
// before emitting the close frame.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down client connections", "clients", h.registry.Count())

	payload, err := json.Marshal(shutdownEvent{
		Type:    eventTypeShutdown,
		Message: "Server is shutting down",
	})
	if err != nil {
		h.logger.Error("failed to encode shutdown event", "error", err)
	}

	h.registry.ForEach(func(c *Client) {
		if payload != nil {
			h.trySend(c, payload)
		}
		if h.registry.Remove(c.id) {
			close(c.send)
		}
	})
}

// Shutdown stops the event loop, closes all client connections, and waits
// for the per-connection goroutines to finish. It returns
// context.DeadlineExceeded when the timeout elapses first.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some connections may still be draining")
		return context.DeadlineExceeded
	}
}
