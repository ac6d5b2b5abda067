package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"imagestudio/internal/metrics"
	"imagestudio/internal/sqlinline"
)

const postgresBackend = "postgres"

// DBTX is the subset of a pgx pool (or infra.SQLRunner) the index store needs.
type DBTX interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// PostgresIndexStore keeps index entries in the index_entries table.
// Expired rows stay in the table but are filtered out of every read.
type PostgresIndexStore struct {
	db DBTX
}

func NewPostgresIndexStore(db DBTX) *PostgresIndexStore {
	return &PostgresIndexStore{db: db}
}

func (s *PostgresIndexStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(postgresBackend, "put", err, start) }()

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl).UTC()
		expiresAt = &t
	}
	if _, err := s.db.Exec(ctx, sqlinline.QPutIndexEntry, key, value, expiresAt); err != nil {
		return fmt.Errorf("storage: put index entry %s: %w", key, err)
	}
	return nil
}

func (s *PostgresIndexStore) Get(ctx context.Context, key string) (value []byte, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			metrics.RecordStorageOperation(postgresBackend, "get", nil, start)
			return
		}
		metrics.RecordStorageOperation(postgresBackend, "get", err, start)
	}()

	if err := s.db.QueryRow(ctx, sqlinline.QGetIndexEntry, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: get index entry %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresIndexStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(postgresBackend, "list", err, start) }()

	rows, err := s.db.Query(ctx, sqlinline.QListIndexKeys, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("storage: list index keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("storage: scan index key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list index keys: %w", err)
	}
	return keys, nil
}

// PurgeExpired deletes rows whose TTL has passed and reports how many went.
func (s *PostgresIndexStore) PurgeExpired(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(postgresBackend, "purge", err, start) }()

	tag, err := s.db.Exec(ctx, sqlinline.QPurgeExpiredIndexEntries)
	if err != nil {
		return 0, fmt.Errorf("storage: purge expired index entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

var _ IndexStore = (*PostgresIndexStore)(nil)
