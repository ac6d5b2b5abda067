package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
	"imagestudio/internal/storage"
)

// HistoryService reads batch records back out of the index store.
type HistoryService struct {
	index  storage.IndexStore
	blobs  storage.BlobStore
	logger zerolog.Logger
	limit  int
}

func NewHistoryService(index storage.IndexStore, blobs storage.BlobStore, logger zerolog.Logger) *HistoryService {
	return &HistoryService{
		index:  index,
		blobs:  blobs,
		logger: logger.With().Str("component", "history").Logger(),
		limit:  domain.HistoryListLimit,
	}
}

// List returns the newest records first, at most 20. The store enumerates
// keys in no useful order, so keys are sorted by their timestamp suffix before
// any record is fetched. Unparsable keys or records are skipped.
func (h *HistoryService) List(ctx context.Context) ([]domain.HistoryRecord, error) {
	keys, err := h.index.List(ctx, domain.HistoryKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list history keys: %w", err)
	}

	type entry struct {
		key string
		ts  int64
	}
	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		ts, err := domain.ParseHistoryKey(key)
		if err != nil {
			h.logger.Warn().Err(err).Msg("history: skipping malformed key")
			continue
		}
		entries = append(entries, entry{key: key, ts: ts})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts > entries[j].ts })

	records := make([]domain.HistoryRecord, 0, min(len(entries), h.limit))
	for _, e := range entries {
		if len(records) == h.limit {
			break
		}
		rec, err := h.load(ctx, e.key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, errMalformedRecord) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	// records are visited in key order; a record whose body disagrees with
	// its key must not break the ordering contract
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp > records[j].Timestamp })
	return records, nil
}

// Get returns the record of one batch.
func (h *HistoryService) Get(ctx context.Context, timestamp int64) (domain.HistoryRecord, error) {
	rec, err := h.load(ctx, domain.HistoryKey(timestamp))
	if errors.Is(err, errMalformedRecord) {
		return domain.HistoryRecord{}, storage.ErrNotFound
	}
	return rec, err
}

// Images fetches the stored blobs of a record in index order. Blobs that no
// longer exist are skipped; the record only holds weak references.
func (h *HistoryService) Images(ctx context.Context, rec domain.HistoryRecord) ([]*storage.Object, error) {
	objects := make([]*storage.Object, 0, len(rec.StorageKeys))
	for _, key := range rec.StorageKeys {
		obj, err := h.blobs.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.logger.Warn().Str("key", key).Int64("timestamp", rec.Timestamp).Msg("history: image missing from blob store")
				continue
			}
			return nil, fmt.Errorf("fetch image %s: %w", key, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

var errMalformedRecord = errors.New("malformed history record")

func (h *HistoryService) load(ctx context.Context, key string) (domain.HistoryRecord, error) {
	raw, err := h.index.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.HistoryRecord{}, storage.ErrNotFound
		}
		return domain.HistoryRecord{}, fmt.Errorf("get history record %s: %w", key, err)
	}
	rec, err := domain.UnmarshalHistoryRecord(raw)
	if err != nil {
		h.logger.Warn().Err(err).Str("key", key).Msg("history: skipping malformed record")
		return domain.HistoryRecord{}, fmt.Errorf("%w: %w", errMalformedRecord, err)
	}
	return rec, nil
}
