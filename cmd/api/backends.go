package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/imagegen"
	"imagestudio/internal/infra"
	"imagestudio/internal/storage"
)

func buildBlobStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (storage.BlobStore, handlers.HealthCheck, error) {
	check := handlers.HealthCheck{Name: "blobs", Check: func(context.Context) error { return nil }}

	switch cfg.BlobBackend {
	case infra.BlobBackendS3:
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, check, err
		}
		check.Check = store.Health
		return store, check, nil
	case infra.BlobBackendMemory:
		logger.Warn().Msg("blob store is in memory; images are lost on restart")
		return storage.NewMemoryBlobStore(), check, nil
	default:
		path := cfg.StoragePath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		store, err := storage.NewFileStore(path)
		if err != nil {
			return nil, check, err
		}
		logger.Info().Str("path", store.BasePath()).Msg("blob store on local filesystem")
		return store, check, nil
	}
}

func buildIndexStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (storage.IndexStore, handlers.HealthCheck, func(), error) {
	check := handlers.HealthCheck{Name: "index", Check: func(context.Context) error { return nil }}
	noop := func() {}

	switch cfg.IndexBackend {
	case infra.IndexBackendPostgres:
		if err := infra.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			return nil, check, noop, fmt.Errorf("migrate: %w", err)
		}
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, check, noop, err
		}
		check.Check = pool.Ping
		return storage.NewPostgresIndexStore(infra.NewSQLRunner(pool, logger)), check, pool.Close, nil
	case infra.IndexBackendRedis:
		store, err := storage.NewRedisIndexStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, check, noop, err
		}
		check.Check = store.Health
		return store, check, func() { _ = store.Close() }, nil
	default:
		logger.Warn().Msg("index store is in memory; history is lost on restart")
		return storage.NewMemoryIndexStore(), check, noop, nil
	}
}

func buildGenerator(cfg *infra.Config, logger zerolog.Logger) imagegen.Generator {
	if cfg.UseSyntheticInference() {
		logger.Warn().Msg("inference credentials missing, using synthetic image generation")
		return imagegen.NewSyntheticGenerator()
	}
	client := imagegen.NewWorkersAIClient(imagegen.WorkersAIOptions{
		BaseURL:   cfg.InferenceBaseURL,
		AccountID: cfg.InferenceAccountID,
		APIToken:  cfg.InferenceAPIToken,
		Model:     cfg.InferenceModel,
		Timeout:   cfg.InferenceAttemptTimeout,
	})
	logger.Info().Str("model", client.Model()).Msg("using workers ai inference")
	return client
}
