package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
)

func newTestSQLite(t *testing.T, maxSize int) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache", "translations.db"), maxSize)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func storeEntry(t *testing.T, s translator.CacheBackend, key, text string, expires time.Time) int {
	t.Helper()
	n, err := s.Store(context.Background(), &translator.CacheEntry{
		Key:         key,
		SourceText:  text,
		Translation: "t:" + text,
		Context:     translator.Context{"domain": "audio"},
		CreatedAt:   time.Now(),
		ExpiresAt:   expires,
	})
	if err != nil {
		t.Fatalf("Store(%s) error = %v", key, err)
	}
	return n
}

func TestSQLiteStore_LoadStore(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()

	if e, err := s.Load(ctx, "missing"); err != nil || e != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", e, err)
	}

	storeEntry(t, s, "k1", "hello", time.Time{})
	e, err := s.Load(ctx, "k1")
	if err != nil || e == nil {
		t.Fatalf("Load(k1) = %v, %v", e, err)
	}
	if e.Key != "k1" || e.SourceText != "hello" || e.Translation != "t:hello" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Context.String("domain") != "audio" {
		t.Errorf("context = %v", e.Context)
	}
	if !e.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", e.ExpiresAt)
	}
	if e.Remaining(time.Now()) != -1 {
		t.Errorf("Remaining = %v, want -1", e.Remaining(time.Now()))
	}
}

func TestSQLiteStore_LRUEviction(t *testing.T) {
	s := newTestSQLite(t, 2)
	ctx := context.Background()

	storeEntry(t, s, "a", "a", time.Time{})
	storeEntry(t, s, "b", "b", time.Time{})
	if _, err := s.Load(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if n := storeEntry(t, s, "c", "c", time.Time{}); n != 1 {
		t.Errorf("evicted = %d, want 1", n)
	}

	if e, _ := s.Load(ctx, "b"); e != nil {
		t.Error("b should have been evicted")
	}
	keys, err := s.Keys(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 entries", keys)
	}

	// Overwriting an existing key never evicts.
	if n := storeEntry(t, s, "a", "a2", time.Time{}); n != 0 {
		t.Errorf("overwrite evicted %d", n)
	}
	if size, _ := s.Len(ctx); size != 2 {
		t.Errorf("Len = %d, want 2", size)
	}
}

func TestSQLiteStore_KeysOrderAndLimit(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()
	for _, k := range []string{"x", "y", "z"} {
		storeEntry(t, s, k, k, time.Time{})
	}
	keys, err := s.Keys(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "z" || keys[1] != "y" {
		t.Errorf("Keys = %v, want [z y]", keys)
	}
}

func TestSQLiteStore_ClearPattern(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()
	storeEntry(t, s, "k1", "drum loop", time.Time{})
	storeEntry(t, s, "k2", "snare_hit", time.Time{})
	storeEntry(t, s, "k3", "100% wet", time.Time{})

	if n, err := s.Clear(ctx, "drum"); err != nil || n != 1 {
		t.Errorf("Clear(drum) = %d, %v; want 1", n, err)
	}
	// Wildcard characters are matched literally.
	if n, err := s.Clear(ctx, "e_h"); err != nil || n != 1 {
		t.Errorf("Clear(e_h) = %d, %v; want 1", n, err)
	}
	if n, err := s.Clear(ctx, "%"); err != nil || n != 1 {
		t.Errorf("Clear(%%) = %d, %v; want 1", n, err)
	}
	if size, _ := s.Len(ctx); size != 0 {
		t.Errorf("Len = %d, want 0", size)
	}
}

func TestSQLiteStore_DeleteAndPurge(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()
	now := time.Now()
	storeEntry(t, s, "live", "live", now.Add(time.Hour))
	storeEntry(t, s, "dead", "dead", now.Add(-time.Second))
	storeEntry(t, s, "forever", "forever", time.Time{})

	n, err := s.PurgeExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d, %v; want 1", n, err)
	}
	ok, err := s.Delete(ctx, "live")
	if err != nil || !ok {
		t.Fatalf("Delete(live) = %v, %v", ok, err)
	}
	if ok, _ = s.Delete(ctx, "live"); ok {
		t.Error("second Delete should report false")
	}
	if size, _ := s.Len(ctx); size != 1 {
		t.Errorf("Len = %d, want 1", size)
	}
}

func TestSQLiteStore_DeleteExpired(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()
	now := time.Now()
	storeEntry(t, s, "k", "kick drum", now.Add(-time.Second))

	// A fresh write replaces the expired row before the delete runs.
	storeEntry(t, s, "k", "kick drum", now.Add(time.Hour))
	if ok, err := s.DeleteExpired(ctx, "k", now); err != nil || ok {
		t.Fatalf("DeleteExpired(fresh) = %v, %v; want false", ok, err)
	}
	if entry, _ := s.Load(ctx, "k"); entry == nil {
		t.Fatal("fresh entry was removed")
	}

	storeEntry(t, s, "k", "kick drum", now.Add(-time.Second))
	if ok, err := s.DeleteExpired(ctx, "k", now); err != nil || !ok {
		t.Fatalf("DeleteExpired(expired) = %v, %v; want true", ok, err)
	}
}

func TestSQLiteStore_WithCacheManager(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()
	cm := translator.NewCacheManager(ctx, translator.DefaultCacheConfig(), s)

	tctx := translator.Context{"target_lang": "zh"}
	if !cm.Set(ctx, "Hello world", "你好世界", tctx) {
		t.Fatal("Set returned false")
	}
	got, ok := cm.Get(ctx, "Hello world", tctx)
	if !ok || got != "你好世界" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok = cm.Get(ctx, "Hello world", nil); ok {
		t.Error("different context must miss")
	}
	m := cm.Metrics()
	if m.Backend != TypeSQLite || m.Hits != 1 || m.Misses != 1 || m.Size != 1 {
		t.Errorf("metrics = %+v", m)
	}
	keys := cm.Keys(ctx, "", 0)
	if len(keys) != 1 || keys[0] != translator.CacheKey("Hello world", tctx) {
		t.Errorf("keys = %v", keys)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s1, err := OpenSQLite(ctx, path, 10)
	if err != nil {
		t.Fatal(err)
	}
	storeEntry(t, s1, "k", "kept", time.Time{})
	if err = s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := OpenSQLite(ctx, path, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s2.Close() }()
	if e, _ := s2.Load(ctx, "k"); e == nil || e.SourceText != "kept" {
		t.Errorf("entry not persisted: %+v", e)
	}
}
