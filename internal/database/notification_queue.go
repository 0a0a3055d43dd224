package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// MaxRetries is the number of times a queued notification is retried
	// before being dropped
	MaxRetries = 5

	// retryBaseDelay is the base for the exponential retry backoff
	retryBaseDelay = 30 * time.Second
)

// QueuedNotification represents a raw webhook body awaiting processing
type QueuedNotification struct {
	ID                  int64
	Data                json.RawMessage
	RetryCount          int
	NextRetryAt         *int64
	ProcessingStartedAt *int64
	LastError           *string
	CreatedAt           int64
}

// EnqueueNotification adds a raw notification body to the processing queue
func (db *DB) EnqueueNotification(data json.RawMessage) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO notification_queue (data, created_at) VALUES (?, ?)
	`, []byte(data), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue item id: %w", err)
	}

	return id, nil
}

// ClaimNotification atomically claims the oldest ready notification for
// processing. Returns nil if nothing is ready.
func (db *DB) ClaimNotification() (*QueuedNotification, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	var item QueuedNotification
	err = tx.QueryRow(`
		SELECT id, data, retry_count, next_retry_at, processing_started_at, last_error, created_at
		FROM notification_queue
		WHERE processing_started_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id ASC
		LIMIT 1
	`, now).Scan(
		&item.ID, &item.Data, &item.RetryCount, &item.NextRetryAt,
		&item.ProcessingStartedAt, &item.LastError, &item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notification queue: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE notification_queue SET processing_started_at = ?
		WHERE id = ? AND processing_started_at IS NULL
	`, now, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Another worker claimed it between select and update
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	item.ProcessingStartedAt = &now
	return &item, nil
}

// DeleteNotification removes a completed notification from the queue
func (db *DB) DeleteNotification(id int64) error {
	_, err := db.conn.Exec(`DELETE FROM notification_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// ReleaseNotification returns a failed notification to the queue with
// exponential backoff, or drops it once retries are exhausted. Returns
// true if the item was released for another attempt.
func (db *DB) ReleaseNotification(id int64, currentRetryCount int, errorMsg string) (bool, error) {
	if currentRetryCount >= MaxRetries {
		if err := db.DeleteNotification(id); err != nil {
			return false, fmt.Errorf("failed to drop notification: %w", err)
		}
		return false, nil
	}

	delay := retryBaseDelay * (1 << currentRetryCount)
	nextRetryAt := time.Now().Add(delay).Unix()

	_, err := db.conn.Exec(`
		UPDATE notification_queue
		SET retry_count = retry_count + 1,
		    next_retry_at = ?,
		    processing_started_at = NULL,
		    last_error = ?
		WHERE id = ?
	`, nextRetryAt, errorMsg, id)
	if err != nil {
		return false, fmt.Errorf("failed to release notification: %w", err)
	}

	return true, nil
}

// GetQueueLength returns the number of items in the notification queue
func (db *DB) GetQueueLength() (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM notification_queue`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return count, nil
}

// GetReadyQueueLength returns the number of items ready for processing
func (db *DB) GetReadyQueueLength() (int, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM notification_queue
		WHERE processing_started_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
	`, time.Now().Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get ready queue length: %w", err)
	}
	return count, nil
}

// GetProcessingQueueLength returns the number of items being processed
func (db *DB) GetProcessingQueueLength() (int, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM notification_queue WHERE processing_started_at IS NOT NULL
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get processing queue length: %w", err)
	}
	return count, nil
}
