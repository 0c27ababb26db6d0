// Package server runs the periodic liveness sweep that drops unresponsive
// connections.
package server

// sweepConnections runs one heartbeat tick. A connection whose liveness flag
// is still false from the previous tick is terminated; everyone else has the
// flag cleared and a protocol-level ping queued. Only the pong handler sets
// the flag true again, so a silent connection is dropped within two ticks.
func (h *Hub) sweepConnections() {
	var stale []*Client
	h.registry.ForEach(func(c *Client) {
		if !c.alive.Load() {
			stale = append(stale, c)
			return
		}
		c.alive.Store(false)
		c.requestPing()
	})

	for _, c := range stale {
		h.logger.Info("terminating unresponsive client", "client_id", c.id, "remote_addr", c.addr)
		h.closeClient(c)
	}
}
