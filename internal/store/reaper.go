package store

import (
	"context"
	"log/slog"
	"time"
)

const reaperInterval = 5 * time.Minute

// StartReaper runs a background goroutine that periodically drops the
// history of sessions idle for longer than ttl. It stops when ctx is done.
func StartReaper(ctx context.Context, repo Repository, ttl time.Duration) {
	startReaper(ctx, repo, ttl, reaperInterval)
}

func startReaper(ctx context.Context, repo Repository, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				reapIdleSessions(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func reapIdleSessions(ctx context.Context, repo Repository, ttl time.Duration) {
	deleted, err := repo.CleanupIdle(ctx, ttl)
	if err != nil {
		slog.Error("Session reaper failed to cleanup idle sessions", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Session reaper removed idle sessions", "count", deleted)
	}
}
