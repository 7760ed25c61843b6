package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	key         TEXT PRIMARY KEY,
	source_text TEXT NOT NULL,
	translation TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT '{}',
	created_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL DEFAULT 0,
	accessed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_` + tableName + `_accessed ON ` + tableName + ` (accessed_at);`

// SQLiteStore is a file-backed LRU cache backend.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	maxSize int
	clock   accessClock
}

// OpenSQLite opens (creating if needed) the cache database at path.
// ":memory:" keeps the database in process.
func OpenSQLite(ctx context.Context, path string, maxSize int) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("cache: sqlite path is required")
	}
	if maxSize <= 0 {
		maxSize = translator.DefaultCacheConfig().MaxSize
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: create sqlite dir: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: init sqlite schema: %w", err)
	}
	log.Debugf("cache: sqlite store at %s (max-size=%d)", path, maxSize)
	return &SQLiteStore{db: db, path: path, maxSize: maxSize}, nil
}

func (s *SQLiteStore) Name() string { return TypeSQLite }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the entry and marks it most recently used.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*translator.CacheEntry, error) {
	k := storageKey(key)
	var (
		entry     translator.CacheEntry
		rawCtx    string
		createdAt int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT source_text, translation, context, created_at, expires_at FROM `+tableName+` WHERE key = ?`, k,
	).Scan(&entry.SourceText, &entry.Translation, &rawCtx, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err = s.db.ExecContext(ctx, `UPDATE `+tableName+` SET accessed_at = ? WHERE key = ?`, s.clock.next(), k); err != nil {
		log.Debugf("cache: sqlite touch %s: %v", key, err)
	}
	entry.Key = key
	entry.Context = decodeContext(rawCtx)
	entry.CreatedAt = fromUnixNano(createdAt)
	entry.ExpiresAt = fromUnixNano(expiresAt)
	return &entry, nil
}

// Store upserts entry. Inserting a new key beyond capacity evicts the least
// recently used entries.
func (s *SQLiteStore) Store(ctx context.Context, entry *translator.CacheEntry) (int, error) {
	rawCtx, err := encodeContext(entry.Context)
	if err != nil {
		return 0, err
	}
	k := storageKey(entry.Key)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+tableName+` WHERE key = ?`, k).Scan(&one)
	isNew := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isNew {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO `+tableName+` (key, source_text, translation, context, created_at, expires_at, accessed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	source_text = excluded.source_text,
	translation = excluded.translation,
	context = excluded.context,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at,
	accessed_at = excluded.accessed_at`,
		k, entry.SourceText, entry.Translation, rawCtx,
		toUnixNano(entry.CreatedAt), toUnixNano(entry.ExpiresAt), s.clock.next())
	if err != nil {
		return 0, err
	}

	evicted := 0
	if isNew {
		var count int
		if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName).Scan(&count); err != nil {
			return 0, err
		}
		if over := count - s.maxSize; over > 0 {
			res, errDel := tx.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE key IN (
	SELECT key FROM `+tableName+` WHERE key <> ? ORDER BY accessed_at ASC LIMIT ?)`, k, over)
			if errDel != nil {
				return 0, errDel
			}
			n, _ := res.RowsAffected()
			evicted = int(n)
		}
	}
	return evicted, tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE key = ?`, storageKey(key))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteExpired removes key only while its stored entry is expired at now.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE key = ? AND expires_at > 0 AND expires_at <= ?`,
		storageKey(key), now.UnixNano())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Clear removes all entries, or those whose key or content contains pattern.
func (s *SQLiteStore) Clear(ctx context.Context, pattern string) (int, error) {
	var (
		res sql.Result
		err error
	)
	if pattern == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM `+tableName)
	} else {
		like := likePattern(pattern)
		res, err = s.db.ExecContext(ctx, `DELETE FROM `+tableName+`
WHERE key LIKE ? ESCAPE '\' OR source_text LIKE ? ESCAPE '\' OR translation LIKE ? ESCAPE '\' OR context LIKE ? ESCAPE '\'`,
			like, like, like, like)
	}
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Keys lists keys from most to least recently used.
func (s *SQLiteStore) Keys(ctx context.Context, pattern string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT key FROM ` + tableName
	args := []any{}
	if pattern != "" {
		like := likePattern(pattern)
		query += ` WHERE key LIKE ? ESCAPE '\' OR source_text LIKE ? ESCAPE '\' OR translation LIKE ? ESCAPE '\' OR context LIKE ? ESCAPE '\'`
		args = append(args, like, like, like, like)
	}
	query += ` ORDER BY accessed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, publicKey(k))
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName).Scan(&n)
	return n, err
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE expires_at > 0 AND expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
