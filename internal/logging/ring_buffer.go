package logging

import (
	"maps"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize is the default capacity of the ring buffer.
const DefaultBufferSize = 1000

// LogEntry is one captured log line as served by the logs endpoint.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Source    string         `json:"source,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// RingBuffer keeps the most recent log entries. It implements logrus.Hook.
type RingBuffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
	count    int
	minLevel log.Level
}

// NewRingBuffer creates a ring buffer. Non-positive capacity uses DefaultBufferSize.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
		minLevel: log.TraceLevel,
	}
}

// SetMinLevel drops entries less severe than level.
func (rb *RingBuffer) SetMinLevel(level log.Level) {
	rb.mu.Lock()
	rb.minLevel = level
	rb.mu.Unlock()
}

// Levels implements logrus.Hook.
func (rb *RingBuffer) Levels() []log.Level {
	return log.AllLevels
}

// Fire implements logrus.Hook.
func (rb *RingBuffer) Fire(entry *log.Entry) error {
	rb.mu.RLock()
	skip := entry.Level > rb.minLevel
	rb.mu.RUnlock()
	if skip {
		return nil
	}

	source := ""
	if entry.Caller != nil {
		source = formatSource(entry.Caller.File, entry.Caller.Line)
	}
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	rb.Write(LogEntry{
		Timestamp: entry.Time,
		Level:     level,
		Message:   entry.Message,
		Source:    source,
		Fields:    maps.Clone(map[string]any(entry.Data)),
	})
	return nil
}

func formatSource(file string, line int) string {
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// Write appends an entry, overwriting the oldest when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % rb.capacity
	if rb.count < rb.capacity {
		rb.count++
	}
}

// Entries returns a copy of all entries, oldest first.
func (rb *RingBuffer) Entries() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	result := make([]LogEntry, rb.count)
	start := (rb.head - rb.count + rb.capacity) % rb.capacity
	for i := range result {
		e := rb.entries[(start+i)%rb.capacity]
		e.Fields = maps.Clone(e.Fields)
		result[i] = e
	}
	return result
}

// Recent returns up to n of the newest entries, oldest first. n <= 0 returns all.
func (rb *RingBuffer) Recent(n int) []LogEntry {
	entries := rb.Entries()
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}

// Filter returns the newest entries at level or more severe, up to n.
func (rb *RingBuffer) Filter(level log.Level, n int) []LogEntry {
	var out []LogEntry
	for _, e := range rb.Entries() {
		lvl, err := log.ParseLevel(e.Level)
		if err != nil || lvl <= level {
			out = append(out, e)
		}
	}
	if n > 0 && n < len(out) {
		out = out[len(out)-n:]
	}
	return out
}

// Len returns the number of buffered entries.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the buffer capacity.
func (rb *RingBuffer) Cap() int {
	return rb.capacity
}

// Clear removes all entries.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.count = 0
	clear(rb.entries)
}

// GlobalBuffer captures the standard logger once SetupBaseLogger has run.
var GlobalBuffer = NewRingBuffer(DefaultBufferSize)
