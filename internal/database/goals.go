package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Default daily goals applied when the tracker has none configured
const (
	DefaultGoalSteps         = 10000
	DefaultGoalFloors        = 10
	DefaultGoalDistanceMiles = 5.0
	DefaultGoalCaloriesOut   = 2500
	DefaultGoalActiveMinutes = 30
)

// ActivityGoals holds the daily goals for one user
type ActivityGoals struct {
	UserID        string
	Steps         int
	Floors        int
	DistanceMiles float64
	CaloriesOut   int
	ActiveMinutes int
}

// GoalsReported records, per metric, whether the goal has already
// triggered a notification in the current goal period
type GoalsReported struct {
	UserID        string
	Steps         bool
	Floors        bool
	Distance      bool
	CaloriesOut   bool
	ActiveMinutes bool
}

// GetGoals retrieves the goals record for a user.
// Returns nil if no goals are stored.
func (db *DB) GetGoals(userID string) (*ActivityGoals, error) {
	var g ActivityGoals
	err := db.conn.QueryRow(`
		SELECT user_id, steps, floors, distance_miles, calories_out, active_minutes
		FROM activity_goals WHERE user_id = ?
	`, userID).Scan(
		&g.UserID, &g.Steps, &g.Floors, &g.DistanceMiles, &g.CaloriesOut, &g.ActiveMinutes,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goals: %w", err)
	}
	return &g, nil
}

// GetOrCreateGoals retrieves the goals record for a user, creating one
// with default goals if none exists
func (db *DB) GetOrCreateGoals(userID string) (*ActivityGoals, bool, error) {
	goals, err := db.GetGoals(userID)
	if err != nil {
		return nil, false, err
	}
	if goals != nil {
		return goals, true, nil
	}

	goals = DefaultGoals(userID)
	if err := db.SaveGoals(goals); err != nil {
		return nil, false, err
	}

	return goals, false, nil
}

// DefaultGoals returns a goals record populated with the default goals
func DefaultGoals(userID string) *ActivityGoals {
	return &ActivityGoals{
		UserID:        userID,
		Steps:         DefaultGoalSteps,
		Floors:        DefaultGoalFloors,
		DistanceMiles: DefaultGoalDistanceMiles,
		CaloriesOut:   DefaultGoalCaloriesOut,
		ActiveMinutes: DefaultGoalActiveMinutes,
	}
}

// SaveGoals persists a goals record (last-writer-wins)
func (db *DB) SaveGoals(g *ActivityGoals) error {
	_, err := db.conn.Exec(`
		INSERT INTO activity_goals (
			user_id, steps, floors, distance_miles, calories_out, active_minutes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			steps = excluded.steps,
			floors = excluded.floors,
			distance_miles = excluded.distance_miles,
			calories_out = excluded.calories_out,
			active_minutes = excluded.active_minutes,
			updated_at = excluded.updated_at
	`, g.UserID, g.Steps, g.Floors, g.DistanceMiles, g.CaloriesOut,
		g.ActiveMinutes, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	return nil
}

// GetOrCreateGoalsReported retrieves the goals-reported flags for a user,
// creating an all-false record if none exists
func (db *DB) GetOrCreateGoalsReported(userID string) (*GoalsReported, bool, error) {
	var r GoalsReported
	err := db.conn.QueryRow(`
		SELECT user_id, steps, floors, distance, calories_out, active_minutes
		FROM goals_reported WHERE user_id = ?
	`, userID).Scan(
		&r.UserID, &r.Steps, &r.Floors, &r.Distance, &r.CaloriesOut, &r.ActiveMinutes,
	)

	if err == nil {
		return &r, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to get goals reported: %w", err)
	}

	r = GoalsReported{UserID: userID}
	if err := db.SaveGoalsReported(&r); err != nil {
		return nil, false, err
	}

	return &r, false, nil
}

// SaveGoalsReported persists the goals-reported flags (last-writer-wins)
func (db *DB) SaveGoalsReported(r *GoalsReported) error {
	_, err := db.conn.Exec(`
		INSERT INTO goals_reported (
			user_id, steps, floors, distance, calories_out, active_minutes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			steps = excluded.steps,
			floors = excluded.floors,
			distance = excluded.distance,
			calories_out = excluded.calories_out,
			active_minutes = excluded.active_minutes,
			updated_at = excluded.updated_at
	`, r.UserID, r.Steps, r.Floors, r.Distance, r.CaloriesOut,
		r.ActiveMinutes, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to save goals reported: %w", err)
	}
	return nil
}
