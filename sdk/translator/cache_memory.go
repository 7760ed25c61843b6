package translator

import (
	"container/list"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is the in-process LRU arena. The list front is the most
// recently used entry.
type MemoryBackend struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
}

// NewMemoryBackend creates an LRU map holding at most maxSize entries.
func NewMemoryBackend(maxSize int) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = DefaultCacheConfig().MaxSize
	}
	return &MemoryBackend{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (m *MemoryBackend) Name() string { return "memory" }

// Load returns the entry and promotes it to most recently used.
func (m *MemoryBackend) Load(_ context.Context, key string) (*CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	m.lru.MoveToFront(el)
	entry := *el.Value.(*CacheEntry)
	return &entry, nil
}

// Store inserts or overwrites an entry, evicting the least recently used one
// when a new key would exceed capacity.
func (m *MemoryBackend) Store(_ context.Context, entry *CacheEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[entry.Key]; ok {
		el.Value = entry
		m.lru.MoveToFront(el)
		return 0, nil
	}

	evicted := 0
	if m.lru.Len() >= m.maxSize {
		if oldest := m.lru.Back(); oldest != nil {
			m.removeElement(oldest)
			evicted++
		}
	}
	m.items[entry.Key] = m.lru.PushFront(entry)
	return evicted, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false, nil
	}
	m.removeElement(el)
	return true, nil
}

// DeleteExpired removes key only if its current entry is expired at now.
func (m *MemoryBackend) DeleteExpired(_ context.Context, key string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok || !el.Value.(*CacheEntry).Expired(now) {
		return false, nil
	}
	m.removeElement(el)
	return true, nil
}

func (m *MemoryBackend) Clear(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pattern == "" {
		n := m.lru.Len()
		m.items = make(map[string]*list.Element)
		m.lru.Init()
		return n, nil
	}

	removed := 0
	for el := m.lru.Front(); el != nil; {
		next := el.Next()
		if entryMatches(el.Value.(*CacheEntry), pattern) {
			m.removeElement(el)
			removed++
		}
		el = next
	}
	return removed, nil
}

func (m *MemoryBackend) Keys(_ context.Context, pattern string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, min(m.lru.Len(), max(limit, 0)))
	for el := m.lru.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*CacheEntry)
		if pattern != "" && !entryMatches(entry, pattern) {
			continue
		}
		keys = append(keys, entry.Key)
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	return keys, nil
}

func (m *MemoryBackend) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len(), nil
}

func (m *MemoryBackend) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.lru.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*CacheEntry).Expired(now) {
			m.removeElement(el)
			removed++
		}
		el = next
	}
	return removed, nil
}

func (m *MemoryBackend) Close() error { return nil }

// Oldest returns the least recently used key.
func (m *MemoryBackend) Oldest() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el := m.lru.Back()
	if el == nil {
		return "", false
	}
	return el.Value.(*CacheEntry).Key, true
}

// Entries returns copies of all entries from least to most recently used, so
// storing them in order into an empty backend reproduces the recency order.
func (m *MemoryBackend) Entries() []CacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CacheEntry, 0, m.lru.Len())
	for el := m.lru.Back(); el != nil; el = el.Prev() {
		out = append(out, *el.Value.(*CacheEntry))
	}
	return out
}

func (m *MemoryBackend) removeElement(el *list.Element) {
	entry := m.lru.Remove(el).(*CacheEntry)
	delete(m.items, entry.Key)
}

// entryMatches is a substring test against the key or the serialized entry.
func entryMatches(entry *CacheEntry, pattern string) bool {
	if strings.Contains(entry.Key, pattern) {
		return true
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return false
	}
	return strings.Contains(string(b), pattern)
}
