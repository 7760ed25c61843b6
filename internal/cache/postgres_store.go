package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
	key         TEXT PRIMARY KEY,
	source_text TEXT NOT NULL,
	translation TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT '{}',
	created_at  BIGINT NOT NULL,
	expires_at  BIGINT NOT NULL DEFAULT 0,
	accessed_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_` + tableName + `_accessed ON ` + tableName + ` (accessed_at);`

// PostgresStore is a shared cache backend for several translator processes.
type PostgresStore struct {
	pool    *pgxpool.Pool
	maxSize int
	clock   accessClock
}

// OpenPostgres connects to dsn and ensures the cache table exists.
func OpenPostgres(ctx context.Context, dsn string, maxSize int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("cache: postgres dsn is required")
	}
	if maxSize <= 0 {
		maxSize = translator.DefaultCacheConfig().MaxSize
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: connect postgres: %w", err)
	}
	if _, err = pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cache: init postgres schema: %w", err)
	}
	log.Debugf("cache: postgres store ready (max-size=%d)", maxSize)
	return &PostgresStore{pool: pool, maxSize: maxSize}, nil
}

func (s *PostgresStore) Name() string { return TypePostgres }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Load(ctx context.Context, key string) (*translator.CacheEntry, error) {
	k := storageKey(key)
	var (
		entry     translator.CacheEntry
		rawCtx    string
		createdAt int64
		expiresAt int64
	)
	err := s.pool.QueryRow(ctx,
		`UPDATE `+tableName+` SET accessed_at = $2 WHERE key = $1
RETURNING source_text, translation, context, created_at, expires_at`, k, s.clock.next(),
	).Scan(&entry.SourceText, &entry.Translation, &rawCtx, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry.Key = key
	entry.Context = decodeContext(rawCtx)
	entry.CreatedAt = fromUnixNano(createdAt)
	entry.ExpiresAt = fromUnixNano(expiresAt)
	return &entry, nil
}

func (s *PostgresStore) Store(ctx context.Context, entry *translator.CacheEntry) (int, error) {
	rawCtx, err := encodeContext(entry.Context)
	if err != nil {
		return 0, err
	}
	k := storageKey(entry.Key)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted bool
	err = tx.QueryRow(ctx, `INSERT INTO `+tableName+` (key, source_text, translation, context, created_at, expires_at, accessed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (key) DO UPDATE SET
	source_text = EXCLUDED.source_text,
	translation = EXCLUDED.translation,
	context = EXCLUDED.context,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at,
	accessed_at = EXCLUDED.accessed_at
RETURNING (xmax = 0)`,
		k, entry.SourceText, entry.Translation, rawCtx,
		toUnixNano(entry.CreatedAt), toUnixNano(entry.ExpiresAt), s.clock.next(),
	).Scan(&inserted)
	if err != nil {
		return 0, err
	}

	evicted := 0
	if inserted {
		var count int
		if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+tableName).Scan(&count); err != nil {
			return 0, err
		}
		if over := count - s.maxSize; over > 0 {
			tag, errDel := tx.Exec(ctx, `DELETE FROM `+tableName+` WHERE key IN (
	SELECT key FROM `+tableName+` WHERE key <> $1 ORDER BY accessed_at ASC LIMIT $2)`, k, over)
			if errDel != nil {
				return 0, errDel
			}
			evicted = int(tag.RowsAffected())
		}
	}
	return evicted, tx.Commit(ctx)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+tableName+` WHERE key = $1`, storageKey(key))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired removes key only while its stored entry is expired at now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+tableName+` WHERE key = $1 AND expires_at > 0 AND expires_at <= $2`,
		storageKey(key), now.UnixNano())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Clear(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		tag, err := s.pool.Exec(ctx, `DELETE FROM `+tableName)
		if err != nil {
			return 0, err
		}
		return int(tag.RowsAffected()), nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+tableName+`
WHERE key LIKE $1 OR source_text LIKE $1 OR translation LIKE $1 OR context LIKE $1`, likePattern(pattern))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Keys lists keys from most to least recently used. A NULL limit is unbounded.
func (s *PostgresStore) Keys(ctx context.Context, pattern string, limit int) ([]string, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	var (
		rows pgx.Rows
		err  error
	)
	if pattern == "" {
		rows, err = s.pool.Query(ctx, `SELECT key FROM `+tableName+` ORDER BY accessed_at DESC LIMIT $1`, lim)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT key FROM `+tableName+`
WHERE key LIKE $1 OR source_text LIKE $1 OR translation LIKE $1 OR context LIKE $1
ORDER BY accessed_at DESC LIMIT $2`, likePattern(pattern), lim)
	}
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = publicKey(k)
	}
	return keys, nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+tableName).Scan(&n)
	return n, err
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+tableName+` WHERE expires_at > 0 AND expires_at <= $1`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
