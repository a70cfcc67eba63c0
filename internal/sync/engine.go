package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tunjid/listingApp-sub001/internal/store"
)

// Syncer runs a blocking sync pass. Implemented by [Coordinator].
type Syncer interface {
	Sync(ctx context.Context) (store.SnapshotResult, error)
}

// Engine drives a [Syncer] on a fixed poll interval. Create one with
// [NewEngine] and start it with [Engine.Run].
type Engine struct {
	syncer       Syncer
	pollInterval time.Duration
	log          *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(syncer Syncer, pollInterval time.Duration, logger *slog.Logger) *Engine {
	return &Engine{syncer: syncer, pollInterval: pollInterval, log: logger}
}

// Run performs an immediate pass, then one per poll interval. It blocks until
// ctx is cancelled. Failed passes are logged and the loop carries on.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Run an immediate first pass.
	e.runPass(ctx, "initial sync failed")

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			e.runPass(ctx, "sync failed")
		}
	}
}

func (e *Engine) runPass(ctx context.Context, msg string) {
	if _, err := e.syncer.Sync(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrClosed) {
			return
		}
		e.log.Error(msg, "error", err)
	}
}
