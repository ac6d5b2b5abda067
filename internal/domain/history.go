package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	HistoryKeyPrefix = "history:"
	HistoryRetention = 30 * 24 * time.Hour
	HistoryListLimit = 20

	ImageContentType  = "image/png"
	ImageCacheControl = "public, max-age=31536000, immutable"
)

// HistoryRecord is the index entry written once per batch that produced at
// least one image. StorageKeys is ordered by image index.
type HistoryRecord struct {
	Prompt         string   `json:"prompt"`
	Steps          int      `json:"steps"`
	NumImages      int      `json:"numImages"`
	Timestamp      int64    `json:"timestamp"`
	StorageKeys    []string `json:"r2Keys"`
	GeneratedCount int      `json:"generatedCount"`
}

// HistoryKey returns the index key for a batch timestamp.
func HistoryKey(timestamp int64) string {
	return HistoryKeyPrefix + strconv.FormatInt(timestamp, 10)
}

// ParseHistoryKey extracts the batch timestamp from an index key.
func ParseHistoryKey(key string) (int64, error) {
	raw, ok := strings.CutPrefix(key, HistoryKeyPrefix)
	if !ok {
		return 0, fmt.Errorf("history key %q: missing prefix", key)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("history key %q: %w", key, err)
	}
	return ts, nil
}

// ImageKey returns the blob key for the index-th image (1-based) of a batch.
func ImageKey(timestamp int64, index int) string {
	return fmt.Sprintf("images/%d-%d.png", timestamp, index)
}

// ImageMetadata is the custom metadata attached to every stored image.
func ImageMetadata(req GenerationRequest, timestamp int64, index int) map[string]string {
	return map[string]string{
		"prompt":      req.Prompt,
		"steps":       strconv.Itoa(req.Steps),
		"timestamp":   strconv.FormatInt(timestamp, 10),
		"imageIndex":  strconv.Itoa(index),
		"totalImages": strconv.Itoa(req.ImageCount),
	}
}

// Marshal encodes the record for the index store.
func (r HistoryRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalHistoryRecord decodes a stored record and checks that it is
// internally consistent.
func UnmarshalHistoryRecord(data []byte) (HistoryRecord, error) {
	var rec HistoryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return HistoryRecord{}, fmt.Errorf("decode history record: %w", err)
	}
	if rec.Timestamp <= 0 {
		return HistoryRecord{}, fmt.Errorf("decode history record: missing timestamp")
	}
	if rec.StorageKeys == nil {
		rec.StorageKeys = []string{}
	}
	return rec, nil
}
