package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePutGet(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte{0x89, 'P', 'N', 'G'}
	opts := PutOptions{
		ContentType:  "image/png",
		CacheControl: "public, max-age=31536000, immutable",
		Metadata:     map[string]string{"prompt": "un cube rouge é", "imageIndex": "1"},
	}
	require.NoError(t, store.Put(ctx, "images/100-1.png", data, opts))

	obj, err := store.Get(ctx, "images/100-1.png")
	require.NoError(t, err)
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, opts.CacheControl, obj.CacheControl)
	assert.Equal(t, opts.Metadata, obj.Metadata)

	_, err = os.Stat(filepath.Join(store.BasePath(), "images", "100-1.png"))
	assert.NoError(t, err)
}

func TestFileStoreMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.png", []byte("x"), PutOptions{})
	assert.Error(t, err)
}

func TestFileStoreHidesSidecars(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "images/1-1.png", []byte("x"), PutOptions{ContentType: "image/png"}))

	_, err = store.Get(context.Background(), "images/1-1.png"+metaSuffix)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeKey(t *testing.T) {
	tests := map[string]string{
		"images/1-1.png":    "images/1-1.png",
		"/images/1-1.png":   "images/1-1.png",
		"./images//1-1.png": "images/1-1.png",
		`images\1-1.png`:    "images/1-1.png",
		"images/../a.png":   "a.png",
	}
	for in, want := range tests {
		got, err := sanitizeKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "  ", "..", "../x", "/../x"} {
		_, err := sanitizeKey(bad)
		assert.ErrorIs(t, err, errInvalidKey, bad)
	}
}
