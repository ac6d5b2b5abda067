package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"imagestudio/internal/generation"
	"imagestudio/internal/http/handlers"
	"imagestudio/internal/http/httpapi"
	"imagestudio/internal/infra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, blobCheck, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.BlobBackend).Msg("failed to configure blob store")
	}
	index, indexCheck, closeIndex, err := buildIndexStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.IndexBackend).Msg("failed to configure index store")
	}
	defer closeIndex()

	generator := buildGenerator(cfg, logger)

	svc := generation.NewService(generation.Options{
		Generator:      generator,
		Blobs:          blobs,
		Index:          index,
		Logger:         logger,
		AttemptTimeout: cfg.InferenceAttemptTimeout,
		Parallelism:    cfg.GenerationParallelism,
	})
	history := generation.NewHistoryService(index, blobs, logger)

	app := handlers.NewApp(svc, history, blobs, logger, blobCheck, indexCheck)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("blob_backend", cfg.BlobBackend).
			Str("index_backend", cfg.IndexBackend).
			Int("parallelism", cfg.GenerationParallelism).
			Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), max(cfg.HTTPIdleTimeout, 10*time.Second))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
