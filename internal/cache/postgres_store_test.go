package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Set TRANSLATOR_TEST_POSTGRES_DSN to run against a live database.
func newTestPostgres(t *testing.T, maxSize int) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TRANSLATOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRANSLATOR_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := OpenPostgres(ctx, dsn, maxSize)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	if _, err = store.Clear(ctx, ""); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_, _ = store.Clear(context.Background(), "")
		_ = store.Close()
	})
	return store
}

func TestPostgresStore_LRUEviction(t *testing.T) {
	s := newTestPostgres(t, 2)
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
	if n := storeEntry(t, s, "a", "a2", time.Time{}); n != 0 {
		t.Errorf("overwrite evicted %d", n)
	}
}

func TestPostgresStore_ClearKeysPurge(t *testing.T) {
	s := newTestPostgres(t, 10)
	ctx := context.Background()
	now := time.Now()
	storeEntry(t, s, "k1", "drum loop", time.Time{})
	storeEntry(t, s, "k2", "snare", now.Add(-time.Second))

	keys, err := s.Keys(ctx, "", 0)
	if err != nil || len(keys) != 2 {
		t.Fatalf("Keys = %v, %v", keys, err)
	}
	if n, _ := s.PurgeExpired(ctx, now); n != 1 {
		t.Errorf("PurgeExpired = %d, want 1", n)
	}
	if n, _ := s.Clear(ctx, "drum"); n != 1 {
		t.Errorf("Clear(drum) = %d, want 1", n)
	}
}

func TestOpenPostgres_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := OpenPostgres(ctx, "postgres://nobody@127.0.0.1:1/none?connect_timeout=1", 10); err == nil {
		t.Fatal("expected error for unreachable database")
	}
	if _, err := OpenPostgres(ctx, "", 10); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
