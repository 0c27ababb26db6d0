// Package server keeps the bounded rolling log of recent chat messages that
// is replayed to newly accepted connections.
package server

// HistoryCapacity is the number of chat messages retained for replay.
const HistoryCapacity = 100

// History is a bounded FIFO log of chat messages. It is confined to the
// hub's event loop and therefore needs no locking.
type History struct {
	capacity int
	entries  []ChatMessage
}

// NewHistory creates a history bounded to the given capacity. Non-positive
// capacities fall back to HistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{
		capacity: capacity,
		entries:  make([]ChatMessage, 0, capacity),
	}
}

// Append adds a message, evicting the oldest entry once the log is full.
// It always succeeds.
func (h *History) Append(msg ChatMessage) {
	if len(h.entries) >= h.capacity {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, msg)
}

// Snapshot returns a copy of the current contents in insertion order.
func (h *History) Snapshot() []ChatMessage {
	out := make([]ChatMessage, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of retained messages.
func (h *History) Len() int {
	return len(h.entries)
}
