package database

import (
	"database/sql"
	"fmt"
	"time"
)

// User represents a linked account and its upstream capabilities
type User struct {
	UserID         string
	TrackerToken   string
	TrackerSecret  string
	DisplayToken   *string
	NotifyDisabled bool
	CreatedAt      int64
	UpdatedAt      int64
}

// GetUser retrieves a user by ID. Returns nil if the user does not exist.
func (db *DB) GetUser(userID string) (*User, error) {
	var u User
	err := db.conn.QueryRow(`
		SELECT user_id, tracker_token, tracker_secret, display_token,
		       notify_disabled, created_at, updated_at
		FROM users WHERE user_id = ?
	`, userID).Scan(
		&u.UserID, &u.TrackerToken, &u.TrackerSecret, &u.DisplayToken,
		&u.NotifyDisabled, &u.CreatedAt, &u.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpsertTrackerCredentials stores the tracker capability for a user,
// creating the user row if needed. Linking re-enables notifications.
func (db *DB) UpsertTrackerCredentials(userID, token, secret string) error {
	now := time.Now().Unix()
	_, err := db.conn.Exec(`
		INSERT INTO users (user_id, tracker_token, tracker_secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			tracker_token = excluded.tracker_token,
			tracker_secret = excluded.tracker_secret,
			notify_disabled = 0,
			updated_at = excluded.updated_at
	`, userID, token, secret, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert tracker credentials: %w", err)
	}
	return nil
}

// ClearTrackerCredentials removes the tracker capability for a user
func (db *DB) ClearTrackerCredentials(userID string) error {
	_, err := db.conn.Exec(`
		UPDATE users
		SET tracker_token = '', tracker_secret = '', updated_at = ?
		WHERE user_id = ?
	`, time.Now().Unix(), userID)

	if err != nil {
		return fmt.Errorf("failed to clear tracker credentials: %w", err)
	}
	return nil
}

// TrackerToken returns the stored tracker capability for a user.
// Empty strings mean the user is not linked.
func (db *DB) TrackerToken(userID string) (string, string, error) {
	u, err := db.GetUser(userID)
	if err != nil {
		return "", "", err
	}
	if u == nil {
		return "", "", nil
	}
	return u.TrackerToken, u.TrackerSecret, nil
}

// SaveDisplayToken stores the display-service token JSON for a user,
// creating the user row if needed
func (db *DB) SaveDisplayToken(userID, tokenJSON string) error {
	now := time.Now().Unix()
	_, err := db.conn.Exec(`
		INSERT INTO users (user_id, display_token, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_token = excluded.display_token,
			notify_disabled = 0,
			updated_at = excluded.updated_at
	`, userID, tokenJSON, now, now)

	if err != nil {
		return fmt.Errorf("failed to save display token: %w", err)
	}
	return nil
}

// DisplayToken returns the stored display-service token JSON for a user.
// Returns empty string if the user has no display capability.
func (db *DB) DisplayToken(userID string) (string, error) {
	u, err := db.GetUser(userID)
	if err != nil {
		return "", err
	}
	if u == nil || u.DisplayToken == nil {
		return "", nil
	}
	return *u.DisplayToken, nil
}

// SetNotifyDisabled flips the notification suppression flag for a user
func (db *DB) SetNotifyDisabled(userID string, disabled bool) error {
	result, err := db.conn.Exec(`
		UPDATE users SET notify_disabled = ?, updated_at = ? WHERE user_id = ?
	`, disabled, time.Now().Unix(), userID)

	if err != nil {
		return fmt.Errorf("failed to set notify_disabled: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// ListLinkedUsers returns all users with a stored tracker capability
func (db *DB) ListLinkedUsers() ([]*User, error) {
	rows, err := db.conn.Query(`
		SELECT user_id, tracker_token, tracker_secret, display_token,
		       notify_disabled, created_at, updated_at
		FROM users
		WHERE tracker_token != ''
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		err := rows.Scan(
			&u.UserID, &u.TrackerToken, &u.TrackerSecret, &u.DisplayToken,
			&u.NotifyDisabled, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}
