package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepFunc removes stale records and reports how many went away.
type SweepFunc func(ctx context.Context) (int64, error)

// StartRecordSweeper launches a background goroutine that periodically runs sweep
// until ctx is cancelled. It is best-effort and logs failures. The returned
// channel is closed once the goroutine has exited.
func StartRecordSweeper(ctx context.Context, interval time.Duration, sweep SweepFunc) <-chan struct{} {
	if interval <= 0 {
		interval = time.Hour
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		// tick first to avoid racing the server at startup
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			start := time.Now()
			n, err := sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				Logger.Warn("record sweep failed", zap.Int64("removed", n), zap.Error(err))
				continue
			}
			if n > 0 {
				Logger.Info("record sweep finished", zap.Int64("removed", n), zap.Duration("took", time.Since(start)))
			}
		}
	}()
	return done
}
