package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mdistance-sync/internal/database"
	"mdistance-sync/internal/metrics"
)

// Processor consumes one raw webhook body. A returned error means the
// body should be released back to the queue for retry.
type Processor interface {
	ProcessBatch(ctx context.Context, raw json.RawMessage) error
}

// Worker drains the notification queue in the background
type Worker struct {
	db           *database.DB
	processor    Processor
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewWorker creates a new notification worker
func NewWorker(db *database.DB, processor Processor) *Worker {
	return &Worker{
		db:           db,
		processor:    processor,
		logger:       slog.Default(),
		pollInterval: 500 * time.Millisecond,
	}
}

// Start runs the poll loop until the context is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	metrics.WorkerActive.Set(1)
	defer metrics.WorkerActive.Set(0)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping notification worker")
			return ctx.Err()
		default:
			item, err := w.db.ClaimNotification()
			if err != nil {
				w.logger.Error("Failed to claim notification", "error", err)
				time.Sleep(w.pollInterval)
				continue
			}

			if item == nil {
				time.Sleep(w.pollInterval)
				continue
			}

			w.process(ctx, item)
		}
	}
}

// process runs one claimed queue item through the pipeline and either
// completes it or releases it for retry with exponential backoff
func (w *Worker) process(ctx context.Context, item *database.QueuedNotification) {
	start := time.Now()
	w.logger.Info("Processing notification", "id", item.ID, "retry_count", item.RetryCount)

	if err := w.processor.ProcessBatch(ctx, item.Data); err != nil {
		w.logger.Error("Failed to process notification", "id", item.ID, "error", err)
		metrics.QueueProcessingDuration.WithLabelValues(metrics.ResultFailure).Observe(time.Since(start).Seconds())
		metrics.QueueDequeueTotal.WithLabelValues(metrics.QueueResultRetry).Inc()
		w.release(item.ID, item.RetryCount, err.Error())
		return
	}

	if err := w.db.DeleteNotification(item.ID); err != nil {
		w.logger.Error("Failed to delete completed notification", "id", item.ID, "error", err)
		return
	}

	metrics.QueueProcessingDuration.WithLabelValues(metrics.ResultSuccess).Observe(time.Since(start).Seconds())
	metrics.QueueDequeueTotal.WithLabelValues(metrics.QueueResultSuccess).Inc()
	w.logger.Info("Notification processed", "id", item.ID)
}

func (w *Worker) release(id int64, currentRetryCount int, errorMsg string) {
	released, err := w.db.ReleaseNotification(id, currentRetryCount, errorMsg)
	if err != nil {
		w.logger.Error("Failed to release notification", "id", id, "error", err)
		return
	}

	if !released {
		w.logger.Warn("Notification exceeded max retries, dropped", "id", id, "retry_count", currentRetryCount)
		metrics.QueueDequeueTotal.WithLabelValues(metrics.QueueResultDropped).Inc()
	} else {
		w.logger.Info("Notification released for retry", "id", id, "retry_count", currentRetryCount+1)
	}
}
