package translator

import (
	"sync"
	"time"
)

// DefaultHistorySize bounds the translation history ring.
const DefaultHistorySize = 100

// HistoryEntry records one postprocessed translation.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Domain    string    `json:"domain,omitempty"`
	Segments  int       `json:"segments,omitempty"`
}

// History is a fixed-capacity ring of recent translations, oldest first.
type History struct {
	mu       sync.RWMutex
	entries  []HistoryEntry
	head     int
	count    int
	capacity int
}

// NewHistory creates a ring holding capacity entries (DefaultHistorySize when <= 0).
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		entries:  make([]HistoryEntry, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, overwriting the oldest once full.
func (h *History) Add(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = e
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
}

// Entries returns a copy of all entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, h.count)
	if h.count < h.capacity {
		copy(out, h.entries[:h.count])
		return out
	}
	n := copy(out, h.entries[h.head:])
	copy(out[n:], h.entries[:h.head])
	return out
}

// Recent returns the n most recent entries, oldest first.
func (h *History) Recent(n int) []HistoryEntry {
	all := h.Entries()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Reset empties the ring.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.head, h.count = 0, 0
	clear(h.entries)
}
