package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleanmap/reports-service/internal/config"
	"github.com/cleanmap/reports-service/internal/staging"
)

// The intake path already sweeps opportunistically on every attempt.
// This worker covers quiet deployments where submissions are rare and
// staged files would otherwise linger well past their 30 minutes.
type StagingSweeper struct {
	store    staging.Store
	interval time.Duration
	logger   *slog.Logger
}

func NewStagingSweeper(store staging.Store, interval time.Duration) *StagingSweeper {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &StagingSweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

func (sw *StagingSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("Staging sweeper started", "interval", sw.interval.String())

	// Run once immediately on startup
	sw.sweep()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("Staging sweeper shutting down")
			return
		case <-ticker.C:
			sw.sweep()
		}
	}
}

func (sw *StagingSweeper) sweep() {
	startTime := time.Now()

	if err := sw.store.Sweep(); err != nil {
		sw.logger.Error("Sweep failed",
			"error", err.Error(),
			"duration_ms", time.Since(startTime).Milliseconds())
		return
	}

	sw.logger.Info("Sweep completed",
		"duration_ms", time.Since(startTime).Milliseconds())
}

func main() {
	cfg := config.MustLoad()

	store := staging.NewDirStore(cfg.Media.StagingDir)
	sweeper := NewStagingSweeper(store, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	sweeper.Start(ctx)

	slog.Info("Staging sweeper stopped")
}
