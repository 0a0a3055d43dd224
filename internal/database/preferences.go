package database

import (
	"database/sql"
	"fmt"
)

// Preferences holds a user's notification toggles, all enabled by default
type Preferences struct {
	UserID        string
	HourlyUpdates bool
	GoalUpdates   bool
	BatteryLevel  bool
}

// GetOrCreatePreferences retrieves a user's preferences, creating the
// default (all enabled) record if none exists
func (db *DB) GetOrCreatePreferences(userID string) (*Preferences, error) {
	var p Preferences
	err := db.conn.QueryRow(`
		SELECT user_id, hourly_updates, goal_updates, battery_level
		FROM preferences WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.HourlyUpdates, &p.GoalUpdates, &p.BatteryLevel)

	if err == nil {
		return &p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	p = Preferences{
		UserID:        userID,
		HourlyUpdates: true,
		GoalUpdates:   true,
		BatteryLevel:  true,
	}
	if err := db.SavePreferences(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// SavePreferences persists a preferences record (last-writer-wins)
func (db *DB) SavePreferences(p *Preferences) error {
	_, err := db.conn.Exec(`
		INSERT INTO preferences (user_id, hourly_updates, goal_updates, battery_level)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			hourly_updates = excluded.hourly_updates,
			goal_updates = excluded.goal_updates,
			battery_level = excluded.battery_level
	`, p.UserID, p.HourlyUpdates, p.GoalUpdates, p.BatteryLevel)

	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
