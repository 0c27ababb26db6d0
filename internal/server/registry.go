// Package server tracks active client connections keyed by their opaque ids.
package server

import "sync"

// Registry holds every active connection, keyed by client id. Mutation only
// happens on the hub's event loop, but reads also come from HTTP handlers,
// so access stays mutex-protected.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Add registers a client under its id, replacing any previous entry.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID()] = c
}

// Remove deletes the client with the given id and reports whether it was
// present. Removal is pure bookkeeping; notifications are the caller's job.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	return true
}

// Lookup returns the client registered under id, if any.
func (r *Registry) Lookup(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ForEach visits a snapshot of the current clients. Visitors may safely add
// or remove registry entries while iterating.
func (r *Registry) ForEach(visit func(*Client)) {
	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		visit(c)
	}
}
