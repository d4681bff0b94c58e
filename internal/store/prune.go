package store

import (
	"context"
	"log/slog"
	"time"
)

// StartPruneWorker runs a background goroutine that periodically removes
// deduplication keys older than retention.
func StartPruneWorker(ctx context.Context, d Deduplicator, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Prune worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneProcessed(ctx, d, retention)
			case <-ctx.Done():
				slog.Info("Prune worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneProcessed(ctx context.Context, d Deduplicator, retention time.Duration) {
	deleted, err := d.PruneProcessed(ctx, time.Now().Add(-retention))
	if err != nil {
		slog.Error("Prune worker failed to remove processed message ids", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Prune worker removed processed message ids", "count", deleted)
	}
}
