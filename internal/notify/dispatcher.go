package notify

import (
	"context"
	"log/slog"

	"mdistance-sync/internal/database"
	"mdistance-sync/internal/fitbit"
	"mdistance-sync/internal/metrics"
	"mdistance-sync/internal/mirror"
)

// Result classifies the outcome of one dispatch attempt
type Result int

const (
	// ResultSuccess means the card was inserted into the user's timeline
	ResultSuccess Result = iota
	// ResultAuthFailure means the display service rejected our
	// credential; the user has been unsubscribed and disabled
	ResultAuthFailure
	// ResultOtherFailure means a transient insert failure; nothing was
	// changed and the next trigger will retry naturally
	ResultOtherFailure
	// ResultSuppressed means the user is marked notify-disabled
	ResultSuppressed
)

// Dispatcher inserts timeline cards and owns the side effects of the
// outcome: marking stats reported on success, unsubscribing and disabling
// the user when the display credential turns out to be revoked
type Dispatcher struct {
	db     *database.DB
	mirror *mirror.Client
	fitbit *fitbit.Client
	logger *slog.Logger
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(db *database.DB, mirrorClient *mirror.Client, fitbitClient *fitbit.Client) *Dispatcher {
	return &Dispatcher{
		db:     db,
		mirror: mirrorClient,
		fitbit: fitbitClient,
		logger: slog.Default(),
	}
}

// DispatchProgress sends a stats-versus-goals progress card
func (d *Dispatcher) DispatchProgress(ctx context.Context, userID string, stats *database.ActivityStats, goals *database.ActivityGoals) Result {
	card := &mirror.ProgressCard{
		Stats: mirror.Totals{
			Steps:         stats.Steps,
			Floors:        stats.Floors,
			DistanceMiles: stats.DistanceMiles,
			CaloriesOut:   stats.CaloriesOut,
			ActiveMinutes: stats.ActiveMinutes,
		},
		Goals: mirror.Totals{
			Steps:         goals.Steps,
			Floors:        goals.Floors,
			DistanceMiles: goals.DistanceMiles,
			CaloriesOut:   goals.CaloriesOut,
			ActiveMinutes: goals.ActiveMinutes,
		},
	}
	return d.dispatch(ctx, userID, card, stats)
}

// DispatchGoals sends a single composite goal-achieved card covering
// every fragment from one evaluation pass
func (d *Dispatcher) DispatchGoals(ctx context.Context, userID string, fragments []mirror.GoalFragment, stats *database.ActivityStats) Result {
	return d.dispatch(ctx, userID, &mirror.GoalCard{Fragments: fragments}, stats)
}

// DispatchBattery sends a low-battery card. Battery cards are not tied to
// a stats record and never touch the reported flag.
func (d *Dispatcher) DispatchBattery(ctx context.Context, userID string, device fitbit.Device) Result {
	card := &mirror.BatteryCard{
		DeviceVersion: device.DeviceVersion,
		Battery:       device.Battery,
	}
	return d.dispatch(ctx, userID, card, nil)
}

func (d *Dispatcher) dispatch(ctx context.Context, userID string, card mirror.Card, dispatched *database.ActivityStats) Result {
	kind := string(card.Kind())
	logger := d.logger.With("user_id", userID, "card", kind)

	user, err := d.db.GetUser(userID)
	if err != nil {
		logger.Error("Failed to load user", "error", err)
		metrics.NotificationsTotal.WithLabelValues(kind, metrics.ResultFailure).Inc()
		return ResultOtherFailure
	}
	if user != nil && user.NotifyDisabled {
		logger.Debug("Notifications disabled, suppressing card")
		metrics.NotificationsTotal.WithLabelValues(kind, metrics.ResultSuppressed).Inc()
		return ResultSuppressed
	}

	itemID, err := d.mirror.InsertCard(ctx, userID, card)
	if err != nil {
		if mirror.IsUnauthorized(err) {
			logger.Warn("Display credential revoked, disabling user", "error", err)
			d.disableUser(ctx, userID)
			metrics.NotificationsTotal.WithLabelValues(kind, metrics.ResultAuthFailure).Inc()
			return ResultAuthFailure
		}
		logger.Error("Failed to insert timeline card", "error", err)
		metrics.NotificationsTotal.WithLabelValues(kind, metrics.ResultFailure).Inc()
		return ResultOtherFailure
	}

	if err := d.db.SaveTimelineItem(userID, itemID); err != nil {
		logger.Error("Failed to record timeline item", "error", err)
	}

	if dispatched != nil {
		d.markReported(userID, dispatched, logger)
	}

	logger.Info("Inserted timeline card", "item_id", itemID)
	metrics.NotificationsTotal.WithLabelValues(kind, metrics.ResultSuccess).Inc()
	return ResultSuccess
}

// markReported flips reported on the stats record, but only if the stored
// values still match the dispatched card. A record updated concurrently
// describes values no card has announced yet.
func (d *Dispatcher) markReported(userID string, dispatched *database.ActivityStats, logger *slog.Logger) {
	unlock := d.db.LockUser(userID)
	defer unlock()

	current, _, err := d.db.GetOrCreateStats(userID)
	if err != nil {
		logger.Error("Failed to load stats for reported flag", "error", err)
		return
	}

	if current.Steps != dispatched.Steps ||
		current.Floors != dispatched.Floors ||
		current.DistanceMiles != dispatched.DistanceMiles ||
		current.CaloriesOut != dispatched.CaloriesOut ||
		current.ActiveMinutes != dispatched.ActiveMinutes {
		logger.Debug("Stats changed during dispatch, leaving reported unset")
		return
	}

	current.Reported = true
	if err := d.db.SaveStats(current); err != nil {
		logger.Error("Failed to mark stats reported", "error", err)
	}
}

// disableUser removes the tracker subscription so the upstream service
// stops sending updates, then persists the disabled flag
func (d *Dispatcher) disableUser(ctx context.Context, userID string) {
	if err := d.fitbit.ClearSubscriptions(ctx, userID); err != nil {
		d.logger.Error("Failed to clear subscriptions for disabled user", "user_id", userID, "error", err)
	}
	if err := d.db.SetNotifyDisabled(userID, true); err != nil {
		d.logger.Error("Failed to persist notify-disabled flag", "user_id", userID, "error", err)
	}
	metrics.UsersDisabledTotal.Inc()
}
