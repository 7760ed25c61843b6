package cache

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
	log "github.com/sirupsen/logrus"
)

// snapshotEntry is the gob form of a cache entry. The context travels as
// JSON since gob cannot encode arbitrary interface values.
type snapshotEntry struct {
	Key         string
	SourceText  string
	Translation string
	ContextJSON string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type snapshotFile struct {
	SavedAt time.Time
	Entries []snapshotEntry
}

// SaveSnapshot persists mb to path using gob encoding, oldest entry first.
// If path is empty, this is a no-op. Creates parent directories if needed.
func SaveSnapshot(path string, mb *translator.MemoryBackend) error {
	if path == "" || mb == nil {
		return nil
	}

	entries := mb.Entries()
	data := snapshotFile{SavedAt: time.Now(), Entries: make([]snapshotEntry, 0, len(entries))}
	for _, e := range entries {
		rawCtx, err := encodeContext(e.Context)
		if err != nil {
			log.Debugf("cache: skip snapshot entry %s: %v", e.Key, err)
			continue
		}
		data.Entries = append(data.Entries, snapshotEntry{
			Key:         e.Key,
			SourceText:  e.SourceText,
			Translation: e.Translation,
			ContextJSON: rawCtx,
			CreatedAt:   e.CreatedAt,
			ExpiresAt:   e.ExpiresAt,
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// Write to temp file then rename for atomicity
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(f).Encode(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	log.Debugf("cache: snapshot saved to %s (%d entries)", path, len(data.Entries))
	return nil
}

// LoadSnapshot restores entries from path into mb, skipping those expired at
// now. A missing file is not an error.
func LoadSnapshot(path string, mb *translator.MemoryBackend, now time.Time) (int, error) {
	if path == "" || mb == nil {
		return 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var data snapshotFile
	if err = gob.NewDecoder(f).Decode(&data); err != nil {
		return 0, err
	}

	loaded := 0
	for _, se := range data.Entries {
		entry := &translator.CacheEntry{
			Key:         se.Key,
			SourceText:  se.SourceText,
			Translation: se.Translation,
			Context:     decodeContext(se.ContextJSON),
			CreatedAt:   se.CreatedAt,
			ExpiresAt:   se.ExpiresAt,
		}
		if entry.Expired(now) {
			continue
		}
		if _, err = mb.Store(context.Background(), entry); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
