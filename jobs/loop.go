package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Leader tries to become the single runner of the named job. It returns
// false when another process holds the role. unlock releases it.
type Leader func(ctx context.Context, name string) (unlock func(), ok bool, err error)

// Loop runs fn immediately and then on every tick until ctx is done. Errors
// are logged and do not stop the loop.
func Loop(ctx context.Context, logger *slog.Logger, name string, every time.Duration, fn func(ctx context.Context) error) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil {
			logger.Error("periodic job run failed", "job", name, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// LeaderLoop is Loop where each run first takes leadership and skips the
// run when another process has it.
func LeaderLoop(ctx context.Context, logger *slog.Logger, leader Leader, name string, every time.Duration, fn func(ctx context.Context) error) {
	if logger == nil {
		logger = slog.Default()
	}
	Loop(ctx, logger, name, every, func(ctx context.Context) error {
		unlock, ok, err := leader(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			logger.Debug("periodic job skipped, not leader", "job", name)
			return nil
		}
		defer unlock()
		return fn(ctx)
	})
}
