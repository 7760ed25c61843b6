// Package cache provides durable backends for the translation cache and the
// wiring that selects one from configuration.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
	log "github.com/sirupsen/logrus"
)

// KeyPrefix namespaces translation entries inside shared stores.
const KeyPrefix = "translation:"

// Backend types accepted by Open.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

const tableName = "translation_cache"

// BackendConfig selects and configures the cache backend.
type BackendConfig struct {
	// Type is memory, sqlite or postgres.
	Type string `yaml:"type" json:"type"`
	// Path is the SQLite database file.
	Path string `yaml:"path" json:"path"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn" json:"dsn"`
	// SnapshotFile persists the memory backend across restarts.
	SnapshotFile string `yaml:"snapshot-file" json:"snapshot_file"`
}

// Open builds the backend described by cfg. The memory type returns a
// *translator.MemoryBackend preloaded from cfg.SnapshotFile when set.
func Open(ctx context.Context, cfg BackendConfig, maxSize int) (translator.CacheBackend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", TypeMemory:
		mb := translator.NewMemoryBackend(maxSize)
		if cfg.SnapshotFile != "" {
			n, err := LoadSnapshot(cfg.SnapshotFile, mb, time.Now())
			if err != nil {
				log.Warnf("cache: load snapshot %s: %v", cfg.SnapshotFile, err)
			} else if n > 0 {
				log.Infof("cache: restored %d entries from %s", n, cfg.SnapshotFile)
			}
		}
		return mb, nil
	case TypeSQLite:
		return OpenSQLite(ctx, cfg.Path, maxSize)
	case TypePostgres:
		return OpenPostgres(ctx, cfg.DSN, maxSize)
	default:
		return nil, fmt.Errorf("cache: unknown backend type %q", cfg.Type)
	}
}

func storageKey(key string) string {
	return KeyPrefix + key
}

func publicKey(stored string) string {
	return strings.TrimPrefix(stored, KeyPrefix)
}

// likePattern turns a substring pattern into a LIKE operand escaped with '\'.
func likePattern(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(pattern) + "%"
}

func encodeContext(tctx translator.Context) (string, error) {
	if len(tctx) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(tctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeContext(raw string) translator.Context {
	if raw == "" || raw == "{}" {
		return nil
	}
	var tctx translator.Context
	if err := json.Unmarshal([]byte(raw), &tctx); err != nil {
		log.Debugf("cache: decode stored context: %v", err)
		return nil
	}
	return tctx
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// accessClock hands out strictly increasing access stamps so recency order
// survives coarse clocks.
type accessClock struct {
	mu   sync.Mutex
	last int64
}

func (c *accessClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UnixNano()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}
