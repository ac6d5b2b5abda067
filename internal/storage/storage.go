// Package storage holds the two persistence tiers: a key-addressed blob store
// for image bytes and an expiring, prefix-listable index store for history.
package storage

import (
	"context"
	"fmt"
	"time"

	"imagestudio/internal/domain"
)

// ErrNotFound is returned by every backend when a key does not exist (or has
// expired). It matches domain.ErrNotFound under errors.Is.
var ErrNotFound = fmt.Errorf("storage: %w", domain.ErrNotFound)

// PutOptions carries the HTTP-facing attributes stored alongside a blob.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// Object is a blob read back from a BlobStore.
type Object struct {
	Key          string
	Data         []byte
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	Get(ctx context.Context, key string) (*Object, error)
}

// IndexStore is a small key-value store. Values written with a positive ttl
// stop being visible once it elapses; List returns keys in no particular order.
type IndexStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

func cloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
