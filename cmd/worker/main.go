package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"imagestudio/internal/infra"
	"imagestudio/internal/storage"
)

const sweepTimeout = 2 * time.Minute

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// sweeper removes expired history rows from the postgres index. Redis and the
// in-memory index expire entries on their own and need no sweeper.
type sweeper struct {
	store    purger
	logger   zerolog.Logger
	interval time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "sweeper").Logger()

	if cfg.IndexBackend != infra.IndexBackendPostgres {
		logger.Info().Str("index_backend", cfg.IndexBackend).Msg("worker: index backend expires entries natively, nothing to sweep")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	w := &sweeper{
		store:    storage.NewPostgresIndexStore(infra.NewSQLRunner(pool, logger)),
		logger:   logger,
		interval: cfg.SweepInterval,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (w *sweeper) Run(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.interval).Msg("worker: started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	n, err := w.store.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("worker: sweep failed")
		}
		return
	}
	if n > 0 {
		w.logger.Info().Int64("deleted", n).Msg("worker: expired index entries removed")
	}
}
