package storage

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlobStoreCopiesData(t *testing.T) {
	store := NewMemoryBlobStore()
	ctx := context.Background()
	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data, PutOptions{ContentType: "image/png", Metadata: map[string]string{"a": "b"}}))
	data[0] = 'z'

	obj, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []string{"k"}, store.Keys())

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryIndexStoreTTLAndPrefix(t *testing.T) {
	store := NewMemoryIndexStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "history:1", []byte("one"), time.Hour))
	require.NoError(t, store.Put(ctx, "history:2", []byte("two"), 0))
	require.NoError(t, store.Put(ctx, "other:3", []byte("three"), time.Hour))

	keys, err := store.List(ctx, "history:")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"history:1", "history:2"}, keys)

	now = now.Add(2 * time.Hour)
	_, err = store.Get(ctx, "history:1")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err = store.List(ctx, "history:")
	require.NoError(t, err)
	assert.Equal(t, []string{"history:2"}, keys)

	value, err := store.Get(ctx, "history:2")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), value)
}
