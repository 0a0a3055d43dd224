package notify

import (
	"context"
	"fmt"
	"log/slog"

	"mdistance-sync/internal/database"
	"mdistance-sync/internal/fitbit"
	"mdistance-sync/internal/metrics"
	"mdistance-sync/internal/mirror"
)

// CardDispatcher is the subset of the dispatcher the evaluator needs
type CardDispatcher interface {
	DispatchGoals(ctx context.Context, userID string, fragments []mirror.GoalFragment, stats *database.ActivityStats) Result
}

// Evaluator compares freshly ingested stats against the user's goals and
// sends a single composite goal-achieved card for every goal crossed
// since the last pass
type Evaluator struct {
	db         *database.DB
	fitbit     *fitbit.Client
	dispatcher CardDispatcher
	logger     *slog.Logger
}

// NewEvaluator creates a goal evaluation engine
func NewEvaluator(db *database.DB, fitbitClient *fitbit.Client, dispatcher CardDispatcher) *Evaluator {
	return &Evaluator{
		db:         db,
		fitbit:     fitbitClient,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
}

// Evaluate runs one goal evaluation pass for the given stats. Each goal
// notifies once per crossing: the per-goal reported flag arms when the
// value falls back below the goal and fires when it crosses again.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, stats *database.ActivityStats) {
	logger := e.logger.With("user_id", userID)

	prefs, err := e.db.GetOrCreatePreferences(userID)
	if err != nil {
		logger.Error("Failed to load preferences", "error", err)
		return
	}
	if !prefs.GoalUpdates {
		logger.Debug("Goal updates disabled, skipping evaluation")
		return
	}

	goals, err := e.loadGoals(ctx, userID)
	if err != nil {
		logger.Warn("Goals unavailable, aborting evaluation", "error", err)
		return
	}

	fragments, err := e.updateReported(userID, stats, goals)
	if err != nil {
		logger.Error("Failed to update goal flags", "error", err)
		return
	}

	if len(fragments) == 0 {
		return
	}

	e.dispatcher.DispatchGoals(ctx, userID, fragments, stats)
}

// loadGoals returns the stored goals, fetching and persisting them from
// the tracker service when no record exists yet
func (e *Evaluator) loadGoals(ctx context.Context, userID string) (*database.ActivityGoals, error) {
	goals, err := e.db.GetGoals(userID)
	if err != nil {
		return nil, err
	}
	if goals != nil {
		return goals, nil
	}

	snapshot, err := e.fitbit.GetActivitiesGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("goals fetch unavailable")
	}

	goals = database.DefaultGoals(userID)
	if snapshot.Steps != nil {
		goals.Steps = *snapshot.Steps
	}
	if snapshot.Floors != nil {
		goals.Floors = *snapshot.Floors
	}
	if snapshot.Distance != nil {
		goals.DistanceMiles = *snapshot.Distance * 0.621371
	}
	if snapshot.CaloriesOut != nil {
		goals.CaloriesOut = *snapshot.CaloriesOut
	}
	if snapshot.ActiveMinutes != nil {
		goals.ActiveMinutes = *snapshot.ActiveMinutes
	}

	if err := e.db.SaveGoals(goals); err != nil {
		return nil, err
	}
	return goals, nil
}

// updateReported applies the crossing and re-arm transitions to the
// per-goal flags under the user lock and persists the record exactly once
func (e *Evaluator) updateReported(userID string, stats *database.ActivityStats, goals *database.ActivityGoals) ([]mirror.GoalFragment, error) {
	unlock := e.db.LockUser(userID)
	defer unlock()

	rep, _, err := e.db.GetOrCreateGoalsReported(userID)
	if err != nil {
		return nil, err
	}

	var fragments []mirror.GoalFragment

	check := func(metric string, reached bool, flag *bool, headline string) {
		switch {
		case reached && !*flag:
			*flag = true
			fragments = append(fragments, mirror.GoalFragment{Metric: metric, Headline: headline})
			metrics.GoalCrossingsTotal.WithLabelValues(metric).Inc()
		case !reached && *flag:
			*flag = false
		}
	}

	check(metrics.MetricSteps, stats.Steps >= goals.Steps, &rep.Steps,
		fmt.Sprintf("%d steps", stats.Steps))

	// A floors goal of zero means the tracker has no altimeter, which
	// would otherwise report an instant crossing on every update
	if goals.Floors > 0 {
		check(metrics.MetricFloors, stats.Floors >= goals.Floors, &rep.Floors,
			fmt.Sprintf("%d floors", stats.Floors))
	}

	check(metrics.MetricDistance, stats.DistanceMiles >= goals.DistanceMiles, &rep.Distance,
		fmt.Sprintf("%.1f miles", stats.DistanceMiles))
	check(metrics.MetricCaloriesOut, stats.CaloriesOut >= goals.CaloriesOut, &rep.CaloriesOut,
		fmt.Sprintf("%d calories burned", stats.CaloriesOut))
	check(metrics.MetricActiveMinutes, stats.ActiveMinutes >= goals.ActiveMinutes, &rep.ActiveMinutes,
		fmt.Sprintf("%d active minutes", stats.ActiveMinutes))

	if err := e.db.SaveGoalsReported(rep); err != nil {
		return nil, err
	}

	return fragments, nil
}
