package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"imagestudio/internal/domain"
	"imagestudio/internal/imagegen"
	"imagestudio/internal/metrics"
	"imagestudio/internal/storage"
)

// Stages an attempt can fail in.
const (
	StageInference = "inference"
	StageDecode    = "decode"
	StageStore     = "store"
)

// AttemptError describes why one image of a batch was skipped.
type AttemptError struct {
	Index int
	Stage string
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("image %d: %s: %v", e.Index, e.Stage, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// GeneratedImage is one successful attempt.
type GeneratedImage struct {
	Index           int
	DisplayEncoding string
	StorageKey      string
}

// Result is the outcome of a batch with at least one stored image.
type Result struct {
	Timestamp      int64
	Prompt         string
	Steps          int
	RequestedCount int
	GeneratedCount int
	Images         []GeneratedImage
	StorageKeys    []string
}

type Options struct {
	Generator      imagegen.Generator
	Blobs          storage.BlobStore
	Index          storage.IndexStore
	Logger         zerolog.Logger
	Clock          Clock
	AttemptTimeout time.Duration
	// Parallelism caps concurrent attempts per batch; values below 2 run
	// attempts one after another.
	Parallelism int
}

// Service runs generation batches: N independent inference calls, one blob
// per success, then a single history record.
type Service struct {
	generator      imagegen.Generator
	blobs          storage.BlobStore
	index          storage.IndexStore
	logger         zerolog.Logger
	clock          Clock
	attemptTimeout time.Duration
	parallelism    int
}

func NewService(opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = NewMonotonicClock()
	}
	return &Service{
		generator:      opts.Generator,
		blobs:          opts.Blobs,
		index:          opts.Index,
		logger:         opts.Logger.With().Str("component", "generation").Logger(),
		clock:          clock,
		attemptTimeout: opts.AttemptTimeout,
		parallelism:    opts.Parallelism,
	}
}

type attemptResult struct {
	image GeneratedImage
	err   error
}

// Generate runs one batch for a validated request. Individual attempt
// failures are logged and skipped; only a batch with no successes returns an
// error wrapping domain.ErrBatchFailed, and then no history is written.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest) (*Result, error) {
	ts := s.clock.NowMillis()
	logger := s.logger.With().Int64("timestamp", ts).Int("requested", req.ImageCount).Logger()

	attempts := make([]attemptResult, req.ImageCount)
	if s.parallelism < 2 || req.ImageCount < 2 {
		for i := range attempts {
			attempts[i] = s.attempt(ctx, logger, req, ts, i+1)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.parallelism)
		for i := range attempts {
			i := i
			g.Go(func() error {
				attempts[i] = s.attempt(ctx, logger, req, ts, i+1)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := &Result{
		Timestamp:      ts,
		Prompt:         req.Prompt,
		Steps:          req.Steps,
		RequestedCount: req.ImageCount,
		Images:         []GeneratedImage{},
		StorageKeys:    []string{},
	}
	var errs []error
	for _, a := range attempts {
		if a.err != nil {
			errs = append(errs, a.err)
			continue
		}
		result.Images = append(result.Images, a.image)
		result.StorageKeys = append(result.StorageKeys, a.image.StorageKey)
	}
	result.GeneratedCount = len(result.Images)
	metrics.RecordBatch(req.ImageCount, result.GeneratedCount)

	if result.GeneratedCount == 0 {
		logger.Error().Msg("generation: every attempt failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrBatchFailed, errors.Join(errs...))
	}

	record := domain.HistoryRecord{
		Prompt:         req.Prompt,
		Steps:          req.Steps,
		NumImages:      req.ImageCount,
		Timestamp:      ts,
		StorageKeys:    result.StorageKeys,
		GeneratedCount: result.GeneratedCount,
	}
	data, err := record.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode history record: %w", err)
	}
	if err := s.index.Put(ctx, domain.HistoryKey(ts), data, domain.HistoryRetention); err != nil {
		return nil, fmt.Errorf("write history record: %w", err)
	}

	logger.Info().Int("generated", result.GeneratedCount).Msg("generation: batch stored")
	return result, nil
}

func (s *Service) attempt(ctx context.Context, logger zerolog.Logger, req domain.GenerationRequest, ts int64, index int) attemptResult {
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	fail := func(stage string, err error) attemptResult {
		metrics.RecordAttempt(stage)
		logger.Warn().Err(err).Int("index", index).Str("stage", stage).Msg("generation: attempt failed")
		return attemptResult{err: &AttemptError{Index: index, Stage: stage, Err: err}}
	}

	payload, err := s.generator.Generate(ctx, req.Prompt, req.Steps)
	if err != nil {
		return fail(StageInference, err)
	}
	img, err := payload.Normalize(ctx)
	if err != nil {
		return fail(StageDecode, err)
	}

	key := domain.ImageKey(ts, index)
	if err := s.blobs.Put(ctx, key, img.Data, storage.PutOptions{
		ContentType:  domain.ImageContentType,
		CacheControl: domain.ImageCacheControl,
		Metadata:     domain.ImageMetadata(req, ts, index),
	}); err != nil {
		return fail(StageStore, err)
	}

	metrics.RecordAttempt("")
	logger.Debug().Int("index", index).Str("key", key).Int("bytes", len(img.Data)).Msg("generation: image stored")
	return attemptResult{image: GeneratedImage{Index: index, DisplayEncoding: img.DisplayEncoding, StorageKey: key}}
}
