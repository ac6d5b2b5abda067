package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"imagestudio/internal/metrics"
)

const (
	redisBackend  = "redis"
	redisScanSize = 500
)

// RedisIndexStore keeps index entries as plain string keys; expiry is
// delegated to Redis itself.
type RedisIndexStore struct {
	client redis.UniversalClient
}

// NewRedisIndexStore connects to one or more comma-separated Redis URLs or
// host:port addresses and verifies the connection.
func NewRedisIndexStore(ctx context.Context, redisURL string) (*RedisIndexStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("storage: redis url must be provided")
	}
	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("storage: parse redis url: %w", err)
	}
	if len(opts.Addrs) > 1 {
		opts.DB = 0
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: connect to redis: %w", err)
	}
	return &RedisIndexStore{client: client}, nil
}

func NewRedisIndexStoreWithClient(client redis.UniversalClient) *RedisIndexStore {
	return &RedisIndexStore{client: client}
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}
		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
	}
	if len(opts.Addrs) == 0 {
		return nil, errors.New("no redis addresses provided")
	}
	return opts, nil
}

func (s *RedisIndexStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(redisBackend, "put", err, start) }()

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("storage: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisIndexStore) Get(ctx context.Context, key string) (value []byte, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			metrics.RecordStorageOperation(redisBackend, "get", nil, start)
			return
		}
		metrics.RecordStorageOperation(redisBackend, "get", err, start)
	}()

	value, err = s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisIndexStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(redisBackend, "list", err, start) }()

	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, matchPattern(prefix), redisScanSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// SCAN may return a key more than once
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("storage: redis scan %s: %w", prefix, err)
	}
	return keys, nil
}

func (s *RedisIndexStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisIndexStore) Close() error {
	return s.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func matchPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

var _ IndexStore = (*RedisIndexStore)(nil)
