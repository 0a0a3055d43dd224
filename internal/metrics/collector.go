package metrics

import (
	"context"
	"log/slog"
	"time"
)

// DB interface for queue depth queries
type DB interface {
	GetQueueLength() (int, error)
	GetReadyQueueLength() (int, error)
	GetProcessingQueueLength() (int, error)
}

// StartQueueDepthCollector starts a background loop that periodically
// collects notification queue depth metrics from the database
func StartQueueDepthCollector(ctx context.Context, db DB, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect once immediately
	collectQueueDepths(db, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Queue depth collector stopping")
			return
		case <-ticker.C:
			collectQueueDepths(db, logger)
		}
	}
}

func collectQueueDepths(db DB, logger *slog.Logger) {
	if total, err := db.GetQueueLength(); err != nil {
		logger.Error("Failed to get queue length", "error", err)
	} else {
		QueueDepthTotal.Set(float64(total))
	}

	if ready, err := db.GetReadyQueueLength(); err != nil {
		logger.Error("Failed to get ready queue length", "error", err)
	} else {
		QueueDepthReady.Set(float64(ready))
	}

	if processing, err := db.GetProcessingQueueLength(); err != nil {
		logger.Error("Failed to get processing queue length", "error", err)
	} else {
		QueueDepthProcessing.Set(float64(processing))
	}
}
