package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// CacheConfig configures the translation cache.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	MaxSize         int           `yaml:"max-size" json:"max_size"`
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup-interval" json:"cleanup_interval"`
}

// DefaultCacheConfig returns sensible defaults for the translation cache.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:         true,
		MaxSize:         1000,
		TTL:             24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// CacheEntry is an immutable cached translation. A zero ExpiresAt never expires.
type CacheEntry struct {
	Key         string    `json:"key"`
	SourceText  string    `json:"source_text"`
	Translation string    `json:"translation"`
	Context     Context   `json:"context,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Remaining returns the time left before expiry, or -1 when the entry never expires.
func (e *CacheEntry) Remaining(now time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return -1
	}
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// CacheBackend is a key/value store for cache entries. Load returns nil, nil
// on a miss. Store reports how many entries it evicted to make room.
type CacheBackend interface {
	Name() string
	Load(ctx context.Context, key string) (*CacheEntry, error)
	Store(ctx context.Context, entry *CacheEntry) (int, error)
	Delete(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) (int, error)
	Keys(ctx context.Context, pattern string, limit int) ([]string, error)
	Len(ctx context.Context) (int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// ExpiredDeleter is implemented by backends that can remove a key only while
// the stored entry is still expired, leaving a concurrent fresh write intact.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, key string, now time.Time) (bool, error)
}

// Pinger is implemented by backends that can verify connectivity at startup.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheMetrics is a point-in-time view of cache effectiveness.
type CacheMetrics struct {
	Enabled       bool      `json:"enabled"`
	Backend       string    `json:"backend"`
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	TotalRequests int64     `json:"total_requests"`
	HitRate       float64   `json:"hit_rate"`
	Size          int       `json:"size"`
	MaxSize       int       `json:"max_size"`
	Evictions     int64     `json:"evictions"`
	Expired       int64     `json:"expired"`
	LastCleanup   time.Time `json:"last_cleanup"`
}

// CacheManager caches translations keyed by source text and context.
type CacheManager struct {
	cfg     CacheConfig
	backend CacheBackend
	enabled atomic.Bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64

	cleanupMu   sync.Mutex
	lastCleanup time.Time

	now func() time.Time
}

// NewCacheManager creates a cache over backend. A nil backend selects the
// in-process LRU map; a backend that fails its Ping is closed and replaced by
// the in-process map for the lifetime of the manager.
func NewCacheManager(ctx context.Context, cfg CacheConfig, backend CacheBackend) *CacheManager {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultCacheConfig().MaxSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCacheConfig().CleanupInterval
	}
	if backend != nil {
		if p, ok := backend.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				log.Warnf("translator cache: %s backend unavailable, falling back to memory: %v", backend.Name(), err)
				if errClose := backend.Close(); errClose != nil {
					log.Debugf("translator cache: close %s backend: %v", backend.Name(), errClose)
				}
				backend = nil
			}
		}
	}
	if backend == nil {
		backend = NewMemoryBackend(cfg.MaxSize)
	}

	cm := &CacheManager{
		cfg:     cfg,
		backend: backend,
		now:     time.Now,
	}
	cm.lastCleanup = cm.now()
	cm.enabled.Store(cfg.Enabled)
	log.Debugf("translator cache: backend=%s max-size=%d ttl=%s", backend.Name(), cfg.MaxSize, cfg.TTL)
	return cm
}

// CacheKey derives the deterministic cache key for text and context.
// encoding/json sorts map keys, so equal contexts serialize identically.
func CacheKey(text string, tctx Context) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{':'})
	h.Write(canonicalContext(tctx))
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalContext(tctx Context) []byte {
	if len(tctx) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(tctx)
	if err != nil {
		return []byte(fmt.Sprintf("%v", map[string]any(tctx)))
	}
	return b
}

// Backend returns the name of the active backend.
func (cm *CacheManager) Backend() string {
	return cm.backend.Name()
}

// SetEnabled turns caching on or off. A disabled cache misses every lookup.
func (cm *CacheManager) SetEnabled(enabled bool) {
	cm.enabled.Store(enabled)
}

// IsEnabled returns whether the cache is enabled.
func (cm *CacheManager) IsEnabled() bool {
	return cm.enabled.Load()
}

// Get returns the cached translation for text and context.
func (cm *CacheManager) Get(ctx context.Context, text string, tctx Context) (string, bool) {
	if !cm.enabled.Load() {
		cm.misses.Add(1)
		return "", false
	}
	key := CacheKey(text, tctx)

	entry, err := cm.backend.Load(ctx, key)
	if err != nil {
		log.Warnf("translator cache: load from %s failed: %v", cm.backend.Name(), err)
		cm.misses.Add(1)
		return "", false
	}
	if entry == nil {
		cm.misses.Add(1)
		return "", false
	}
	if now := cm.now(); entry.Expired(now) {
		if _, errDel := cm.deleteExpired(ctx, key, now); errDel != nil {
			log.Debugf("translator cache: delete expired entry: %v", errDel)
		}
		cm.expired.Add(1)
		cm.misses.Add(1)
		return "", false
	}
	cm.hits.Add(1)
	return entry.Translation, true
}

func (cm *CacheManager) deleteExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	if d, ok := cm.backend.(ExpiredDeleter); ok {
		return d.DeleteExpired(ctx, key, now)
	}
	return cm.backend.Delete(ctx, key)
}

// Set caches translation with the configured TTL.
func (cm *CacheManager) Set(ctx context.Context, text, translation string, tctx Context) bool {
	return cm.SetWithTTL(ctx, text, translation, tctx, cm.cfg.TTL)
}

// SetWithTTL caches translation; ttl <= 0 means the entry never expires.
func (cm *CacheManager) SetWithTTL(ctx context.Context, text, translation string, tctx Context, ttl time.Duration) bool {
	if !cm.enabled.Load() {
		return false
	}
	now := cm.now()
	entry := &CacheEntry{
		Key:         CacheKey(text, tctx),
		SourceText:  text,
		Translation: translation,
		Context:     tctx.Clone(),
		CreatedAt:   now,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	evicted, err := cm.backend.Store(ctx, entry)
	if err != nil {
		log.Warnf("translator cache: store to %s failed: %v", cm.backend.Name(), err)
		return false
	}
	if evicted > 0 {
		cm.evictions.Add(int64(evicted))
	}
	cm.maybeCleanup(ctx, now)
	return true
}

func (cm *CacheManager) maybeCleanup(ctx context.Context, now time.Time) {
	cm.cleanupMu.Lock()
	if now.Sub(cm.lastCleanup) < cm.cfg.CleanupInterval {
		cm.cleanupMu.Unlock()
		return
	}
	cm.lastCleanup = now
	cm.cleanupMu.Unlock()

	removed, err := cm.backend.PurgeExpired(ctx, now)
	if err != nil {
		log.Warnf("translator cache: cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		cm.expired.Add(int64(removed))
		log.Debugf("translator cache: removed %d expired entries", removed)
	}
}

// Delete removes the entry for text and context.
func (cm *CacheManager) Delete(ctx context.Context, text string, tctx Context) bool {
	ok, err := cm.backend.Delete(ctx, CacheKey(text, tctx))
	if err != nil {
		log.Warnf("translator cache: delete failed: %v", err)
		return false
	}
	return ok
}

// Clear removes every entry when pattern is empty, otherwise the entries whose
// key or serialized form contains pattern. It returns the number removed.
func (cm *CacheManager) Clear(ctx context.Context, pattern string) int {
	n, err := cm.backend.Clear(ctx, pattern)
	if err != nil {
		log.Warnf("translator cache: clear failed: %v", err)
		return 0
	}
	log.Debugf("translator cache: cleared %d entries (pattern=%q)", n, pattern)
	return n
}

// Keys lists up to limit keys containing pattern. limit <= 0 means no limit.
func (cm *CacheManager) Keys(ctx context.Context, pattern string, limit int) []string {
	keys, err := cm.backend.Keys(ctx, pattern, limit)
	if err != nil {
		log.Warnf("translator cache: list keys failed: %v", err)
		return nil
	}
	return keys
}

// Entry returns the raw entry for key and its remaining TTL without touching
// hit counters.
func (cm *CacheManager) Entry(ctx context.Context, key string) (CacheEntry, time.Duration, bool) {
	entry, err := cm.backend.Load(ctx, key)
	if err != nil || entry == nil {
		return CacheEntry{}, 0, false
	}
	now := cm.now()
	if entry.Expired(now) {
		return CacheEntry{}, 0, false
	}
	return *entry, entry.Remaining(now), true
}

// Metrics returns current cache statistics.
func (cm *CacheManager) Metrics() CacheMetrics {
	hits := cm.hits.Load()
	misses := cm.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	size, err := cm.backend.Len(context.Background())
	if err != nil {
		log.Debugf("translator cache: size query failed: %v", err)
	}
	cm.cleanupMu.Lock()
	last := cm.lastCleanup
	cm.cleanupMu.Unlock()

	return CacheMetrics{
		Enabled:       cm.enabled.Load(),
		Backend:       cm.backend.Name(),
		Hits:          hits,
		Misses:        misses,
		TotalRequests: total,
		HitRate:       rate,
		Size:          size,
		MaxSize:       cm.cfg.MaxSize,
		Evictions:     cm.evictions.Load(),
		Expired:       cm.expired.Load(),
		LastCleanup:   last,
	}
}

// ResetMetrics zeroes the hit, miss and eviction counters.
func (cm *CacheManager) ResetMetrics() {
	cm.hits.Store(0)
	cm.misses.Store(0)
	cm.evictions.Store(0)
	cm.expired.Store(0)
}

// Close releases the backend.
func (cm *CacheManager) Close() error {
	return cm.backend.Close()
}
