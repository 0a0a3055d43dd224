package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mdistance-sync/internal/database"
	"mdistance-sync/internal/fitbit"
	"mdistance-sync/internal/metrics"
)

// kmToMiles converts the source API's kilometer distances to the miles
// stored and displayed by this service
const kmToMiles = 0.621371

// Notification is one update descriptor from the tracker's webhook batch
type Notification struct {
	SubscriberID string `json:"subscriberId"`
	Date         string `json:"date"`
}

// GoalEvaluator is invoked with freshly saved stats after each ingest
type GoalEvaluator interface {
	Evaluate(ctx context.Context, userID string, stats *database.ActivityStats)
}

// Pipeline turns an inbound notification into an updated stats record and
// at most one goal evaluation pass
type Pipeline struct {
	db        *database.DB
	fitbit    *fitbit.Client
	evaluator GoalEvaluator
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline creates a new update ingest pipeline
func NewPipeline(db *database.DB, fitbitClient *fitbit.Client, evaluator GoalEvaluator) *Pipeline {
	return &Pipeline{
		db:        db,
		fitbit:    fitbitClient,
		evaluator: evaluator,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// ProcessBatch processes one raw webhook body. Batches are ordered
// oldest-to-newest by the sender, so only the last element is processed.
// A returned error means the batch should be retried; discard conditions
// (stale, not linked, malformed, upstream unavailable) return nil because
// a retry would not help.
func (p *Pipeline) ProcessBatch(ctx context.Context, raw json.RawMessage) error {
	var batch []Notification
	if err := json.Unmarshal(raw, &batch); err != nil {
		p.logger.Error("Failed to unmarshal notification batch", "error", err)
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestMalformed).Inc()
		return nil
	}

	if len(batch) == 0 {
		p.logger.Warn("Empty notification batch")
		return nil
	}

	if skipped := len(batch) - 1; skipped > 0 {
		p.logger.Info("Skipping older batch elements", "skipped", skipped)
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestBatchSkipped).Add(float64(skipped))
	}

	return p.processNotification(ctx, batch[len(batch)-1])
}

func (p *Pipeline) processNotification(ctx context.Context, n Notification) error {
	logger := p.logger.With("user_id", n.SubscriberID, "date", n.Date)

	// Step 1: discard stale notifications
	date, err := time.Parse("2006-01-02", n.Date)
	if err != nil {
		logger.Error("Invalid notification date", "error", err)
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestMalformed).Inc()
		return nil
	}

	if p.isStale(date) {
		logger.Info("Discarding stale notification")
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestStale).Inc()
		return nil
	}

	// Step 2: a missing credential is a normal condition for a revoked or
	// never-linked account, not a bug
	if !p.fitbit.IsReady(n.SubscriberID) {
		logger.Warn("No tracker capability, discarding notification")
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestNotLinked).Inc()
		return nil
	}

	// Step 3: the next webhook delivery naturally recovers from a
	// transient upstream failure, so no retry is scheduled here
	snapshot, err := p.fitbit.GetActivitiesInfo(ctx, n.SubscriberID, n.Date)
	if err != nil {
		logger.Error("Malformed activities response", "error", err)
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestMalformed).Inc()
		return nil
	}
	if snapshot == nil {
		logger.Error("Activity snapshot unavailable")
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestUnavailable).Inc()
		return nil
	}

	// Step 4: any parse failure aborts the whole update, no partial
	// persistence
	parsed, err := parseSummary(snapshot.Summary)
	if err != nil {
		logger.Error("Malformed activity summary", "error", err)
		metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestMalformed).Inc()
		return nil
	}

	// Steps 5-6: change detection and persistence are one critical
	// section per user
	stats, err := p.updateStats(n.SubscriberID, parsed)
	if err != nil {
		return fmt.Errorf("failed to update stats for user %s: %w", n.SubscriberID, err)
	}

	// Step 7: goals refresh is a separate failure boundary; stats already
	// saved are intentionally kept
	if snapshot.Goals != nil {
		p.refreshGoals(n.SubscriberID, snapshot.Goals, logger)
	}

	metrics.IngestOutcomesTotal.WithLabelValues(metrics.IngestProcessed).Inc()

	// Step 8
	p.evaluator.Evaluate(ctx, n.SubscriberID, stats)

	return nil
}

// isStale reports whether the notification date is more than one day
// before today
func (p *Pipeline) isStale(date time.Time) bool {
	now := p.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.Sub(date) > 24*time.Hour
}

// parsedSummary holds the validated metric values of one snapshot
type parsedSummary struct {
	steps         int
	floors        int
	distanceMiles float64
	caloriesOut   int
	activeMinutes int
}

func parseSummary(summary *fitbit.ActivitySummary) (*parsedSummary, error) {
	if summary == nil {
		return nil, fmt.Errorf("missing summary block")
	}
	if summary.Steps == nil {
		return nil, fmt.Errorf("missing required field steps")
	}
	if summary.CaloriesOut == nil {
		return nil, fmt.Errorf("missing required field caloriesOut")
	}
	if summary.ActiveMinutes == nil {
		return nil, fmt.Errorf("missing required field activeMinutes")
	}
	if len(summary.Distances) == 0 {
		return nil, fmt.Errorf("missing distances list")
	}

	parsed := &parsedSummary{
		steps:         *summary.Steps,
		distanceMiles: summary.Distances[0].Distance * kmToMiles,
		caloriesOut:   *summary.CaloriesOut,
		activeMinutes: *summary.ActiveMinutes,
	}

	// Floors are optional: not every tracker has an altimeter
	if summary.Floors != nil {
		parsed.floors = *summary.Floors
	}

	return parsed, nil
}

// updateStats loads or creates the stats record, clears reported when any
// field changed and persists unconditionally
func (p *Pipeline) updateStats(userID string, parsed *parsedSummary) (*database.ActivityStats, error) {
	unlock := p.db.LockUser(userID)
	defer unlock()

	stats, _, err := p.db.GetOrCreateStats(userID)
	if err != nil {
		return nil, err
	}

	changed := stats.Steps != parsed.steps ||
		stats.Floors != parsed.floors ||
		stats.DistanceMiles != parsed.distanceMiles ||
		stats.CaloriesOut != parsed.caloriesOut ||
		stats.ActiveMinutes != parsed.activeMinutes

	if changed {
		stats.Reported = false
	}

	stats.Steps = parsed.steps
	stats.Floors = parsed.floors
	stats.DistanceMiles = parsed.distanceMiles
	stats.CaloriesOut = parsed.caloriesOut
	stats.ActiveMinutes = parsed.activeMinutes

	// Saved even when nothing changed, to refresh last_modified
	if err := p.db.SaveStats(stats); err != nil {
		return nil, err
	}

	return stats, nil
}

// refreshGoals parses and persists the goals block of a snapshot.
// Failures are logged and swallowed: stats already saved stay saved.
func (p *Pipeline) refreshGoals(userID string, snapshot *fitbit.GoalsSnapshot, logger *slog.Logger) {
	goals := database.DefaultGoals(userID)

	if snapshot.Steps != nil {
		goals.Steps = *snapshot.Steps
	}
	if snapshot.Floors != nil {
		goals.Floors = *snapshot.Floors
	}
	if snapshot.Distance != nil {
		goals.DistanceMiles = *snapshot.Distance * kmToMiles
	}
	if snapshot.CaloriesOut != nil {
		goals.CaloriesOut = *snapshot.CaloriesOut
	}
	if snapshot.ActiveMinutes != nil {
		goals.ActiveMinutes = *snapshot.ActiveMinutes
	}

	if err := p.db.SaveGoals(goals); err != nil {
		logger.Error("Failed to save goals", "error", err)
	}
}
