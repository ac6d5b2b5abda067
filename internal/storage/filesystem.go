package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const metaSuffix = ".meta.json"

// FileStore persists blobs onto the local filesystem. It is intended for
// development and single-node deployments where an object storage service is
// not available. Attributes live in a JSON sidecar next to each object.
type FileStore struct {
	basePath string
}

type fileMeta struct {
	ContentType  string            `json:"content_type,omitempty"`
	CacheControl string            `json:"cache_control,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put writes the object and its sidecar. The sidecar is written last so a
// reader never sees attributes without data.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	fullPath, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := writeFileAtomic(fullPath, data); err != nil {
		return fmt.Errorf("storage: write file: %w", err)
	}
	meta, err := json.Marshal(fileMeta{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Metadata:     opts.Metadata,
	})
	if err != nil {
		return fmt.Errorf("storage: encode metadata: %w", err)
	}
	if err := writeFileAtomic(fullPath+metaSuffix, meta); err != nil {
		return fmt.Errorf("storage: write metadata: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*Object, error) {
	fullPath, err := s.resolve(ctx, key)
	if err != nil {
		if errors.Is(err, errInvalidKey) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	obj := &Object{Key: key, Data: data}
	raw, err := os.ReadFile(fullPath + metaSuffix)
	switch {
	case err == nil:
		var meta fileMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("storage: decode metadata: %w", err)
		}
		obj.ContentType = meta.ContentType
		obj.CacheControl = meta.CacheControl
		obj.Metadata = meta.Metadata
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("storage: read metadata: %w", err)
	}
	return obj, nil
}

func (s *FileStore) resolve(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(cleanKey, metaSuffix) {
		return "", errInvalidKey
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var errInvalidKey = errors.New("storage: invalid key")

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: key is required", errInvalidKey)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errInvalidKey
	}
	return cleaned, nil
}

var _ BlobStore = (*FileStore)(nil)
