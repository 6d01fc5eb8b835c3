package scanner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SnapshotFunc persists the store after a successful cycle. Persistence
// failures are logged and swallowed so the in-memory state keeps serving.
type SnapshotFunc func(ctx context.Context) error

// StartPipeline scans on a fixed interval until the context is cancelled.
// An immediate first scan runs before the ticker settles in.
func StartPipeline(ctx context.Context, sc *Scanner, interval time.Duration,
	snapshot SnapshotFunc, logger *zap.Logger) {
	logger = logger.Named("scan_pipeline")
	DoScanOnce(ctx, sc, snapshot, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping scan pipeline, context cancelled")
			return
		case <-ticker.C:
			DoScanOnce(ctx, sc, snapshot, logger)
		}
	}
}

func DoScanOnce(ctx context.Context, sc *Scanner, snapshot SnapshotFunc, logger *zap.Logger) {
	result, err := sc.Scan(ctx)
	if err != nil {
		// prior store state stays untouched, the next tick retries
		logger.Error("scan cycle failed", zap.Error(err))
		return
	}
	if snapshot == nil {
		return
	}
	if err := snapshot(ctx); err != nil {
		logger.Error(errors.Wrap(err, "failed persisting donation snapshot").Error(),
			zap.String("scan_id", result.ID.String()))
	}
}
