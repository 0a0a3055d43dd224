package database

import (
	"database/sql"
	"fmt"
	"time"
)

// ActivityStats holds the latest activity statistics for one user.
// Reported is cleared whenever a numeric field changes on ingest and set
// only after a card referencing the current values has been dispatched.
type ActivityStats struct {
	UserID        string
	Steps         int
	Floors        int
	DistanceMiles float64
	CaloriesOut   int
	ActiveMinutes int
	Reported      bool
	LastModified  int64
}

// GetOrCreateStats retrieves the stats record for a user, creating a zero
// record if none exists. The second return value reports whether the
// record already existed.
func (db *DB) GetOrCreateStats(userID string) (*ActivityStats, bool, error) {
	stats, err := db.getStats(userID)
	if err != nil {
		return nil, false, err
	}
	if stats != nil {
		return stats, true, nil
	}

	stats = &ActivityStats{
		UserID:       userID,
		LastModified: time.Now().Unix(),
	}

	_, err = db.conn.Exec(`
		INSERT INTO activity_stats (user_id, last_modified) VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, stats.LastModified)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create stats: %w", err)
	}

	return stats, false, nil
}

func (db *DB) getStats(userID string) (*ActivityStats, error) {
	var s ActivityStats
	err := db.conn.QueryRow(`
		SELECT user_id, steps, floors, distance_miles, calories_out,
		       active_minutes, reported, last_modified
		FROM activity_stats WHERE user_id = ?
	`, userID).Scan(
		&s.UserID, &s.Steps, &s.Floors, &s.DistanceMiles, &s.CaloriesOut,
		&s.ActiveMinutes, &s.Reported, &s.LastModified,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &s, nil
}

// SaveStats persists a stats record unconditionally (last-writer-wins)
// and refreshes last_modified
func (db *DB) SaveStats(s *ActivityStats) error {
	s.LastModified = time.Now().Unix()

	_, err := db.conn.Exec(`
		INSERT INTO activity_stats (
			user_id, steps, floors, distance_miles, calories_out,
			active_minutes, reported, last_modified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			steps = excluded.steps,
			floors = excluded.floors,
			distance_miles = excluded.distance_miles,
			calories_out = excluded.calories_out,
			active_minutes = excluded.active_minutes,
			reported = excluded.reported,
			last_modified = excluded.last_modified
	`, s.UserID, s.Steps, s.Floors, s.DistanceMiles, s.CaloriesOut,
		s.ActiveMinutes, s.Reported, s.LastModified)

	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// ListUnreportedStats returns all stats records with reported = false and
// steps > 0, the sweep job's delivery predicate
func (db *DB) ListUnreportedStats() ([]*ActivityStats, error) {
	rows, err := db.conn.Query(`
		SELECT user_id, steps, floors, distance_miles, calories_out,
		       active_minutes, reported, last_modified
		FROM activity_stats
		WHERE reported = 0 AND steps > 0
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreported stats: %w", err)
	}
	defer rows.Close()

	var stats []*ActivityStats
	for rows.Next() {
		var s ActivityStats
		err := rows.Scan(
			&s.UserID, &s.Steps, &s.Floors, &s.DistanceMiles, &s.CaloriesOut,
			&s.ActiveMinutes, &s.Reported, &s.LastModified,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}

	return stats, nil
}
