package sweep

import (
	"context"
	"log/slog"

	"mdistance-sync/internal/database"
	"mdistance-sync/internal/fitbit"
	"mdistance-sync/internal/metrics"
	"mdistance-sync/internal/notify"
)

// Job is the periodic pass that sends progress cards for unreported stats
// and low-battery cards for linked trackers
type Job struct {
	db         *database.DB
	fitbit     *fitbit.Client
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// NewJob creates the periodic sweep job
func NewJob(db *database.DB, fitbitClient *fitbit.Client, dispatcher *notify.Dispatcher) *Job {
	return &Job{
		db:         db,
		fitbit:     fitbitClient,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
}

// Run executes one sweep pass
func (j *Job) Run(ctx context.Context) {
	metrics.SweepRunsTotal.Inc()
	j.logger.Info("Starting sweep pass")

	j.sweepProgress(ctx)
	j.sweepBattery(ctx)

	j.logger.Info("Sweep pass complete")
}

// sweepProgress sends a progress card to every user whose stats changed
// since the last successful notification
func (j *Job) sweepProgress(ctx context.Context) {
	unreported, err := j.db.ListUnreportedStats()
	if err != nil {
		j.logger.Error("Failed to list unreported stats", "error", err)
		return
	}

	metrics.SweepUsersScanned.Observe(float64(len(unreported)))

	for _, stats := range unreported {
		logger := j.logger.With("user_id", stats.UserID)

		prefs, err := j.db.GetOrCreatePreferences(stats.UserID)
		if err != nil {
			logger.Error("Failed to load preferences", "error", err)
			continue
		}
		if !prefs.HourlyUpdates {
			continue
		}

		goals, _, err := j.db.GetOrCreateGoals(stats.UserID)
		if err != nil {
			logger.Error("Failed to load goals", "error", err)
			continue
		}

		j.dispatcher.DispatchProgress(ctx, stats.UserID, stats, goals)
	}
}

// sweepBattery checks every linked user's tracker and sends a card when
// the battery runs low. Battery cards never touch the reported flag.
//
// The user list is loaded after the progress sweep so a user disabled
// during it is excluded here.
func (j *Job) sweepBattery(ctx context.Context) {
	users, err := j.db.ListLinkedUsers()
	if err != nil {
		j.logger.Error("Failed to list linked users", "error", err)
		return
	}

	for _, user := range users {
		if user.NotifyDisabled {
			continue
		}

		logger := j.logger.With("user_id", user.UserID)

		prefs, err := j.db.GetOrCreatePreferences(user.UserID)
		if err != nil {
			logger.Error("Failed to load preferences", "error", err)
			continue
		}
		if !prefs.BatteryLevel {
			continue
		}

		for _, device := range j.fitbit.GetDevices(ctx, user.UserID) {
			if device.Type != fitbit.DeviceTypeTracker || !device.LowBattery() {
				continue
			}
			logger.Info("Tracker battery low", "device", device.DeviceVersion, "battery", device.Battery)
			j.dispatcher.DispatchBattery(ctx, user.UserID, device)
			break
		}
	}
}
