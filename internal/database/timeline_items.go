package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveTimelineItem records the id of the last card inserted for a user
func (db *DB) SaveTimelineItem(userID, itemID string) error {
	_, err := db.conn.Exec(`
		INSERT INTO timeline_items (user_id, item_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			item_id = excluded.item_id,
			updated_at = excluded.updated_at
	`, userID, itemID, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to save timeline item: %w", err)
	}
	return nil
}

// GetTimelineItem returns the id of the last card inserted for a user,
// or empty string if none was recorded
func (db *DB) GetTimelineItem(userID string) (string, error) {
	var itemID string
	err := db.conn.QueryRow(`
		SELECT item_id FROM timeline_items WHERE user_id = ?
	`, userID).Scan(&itemID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get timeline item: %w", err)
	}
	return itemID, nil
}
