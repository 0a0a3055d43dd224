package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB

	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

// Open opens a connection to the SQLite database at the specified path
// and initializes the schema
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{
		conn:      conn,
		userLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Health checks if the database connection is healthy
func (db *DB) Health() error {
	return db.conn.Ping()
}

// LockUser serializes read-modify-write sequences for a single user.
// Returns the unlock function. Every get-then-put of a per-user record
// must run inside this lock so overlapping ingests cannot interleave.
func (db *DB) LockUser(userID string) func() {
	db.lockMu.Lock()
	mu, ok := db.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		db.userLocks[userID] = mu
	}
	db.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
