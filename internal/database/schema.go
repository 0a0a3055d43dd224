package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Users table: one row per linked account, keyed by the tracker's
-- subscriber/user id. Holds both upstream capabilities.
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,

    -- Fitness tracker OAuth1 capability
    tracker_token TEXT NOT NULL DEFAULT '',
    tracker_secret TEXT NOT NULL DEFAULT '',

    -- Display service OAuth2 capability (token JSON)
    display_token TEXT,

    -- Set when the display service reports the grant revoked; suppresses
    -- all notification attempts until re-authorization
    notify_disabled BOOLEAN NOT NULL DEFAULT 0,

    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Latest activity statistics, one row per user, overwritten in place
CREATE TABLE IF NOT EXISTS activity_stats (
    user_id TEXT PRIMARY KEY,
    steps INTEGER NOT NULL DEFAULT 0,
    floors INTEGER NOT NULL DEFAULT 0,
    distance_miles REAL NOT NULL DEFAULT 0,
    calories_out INTEGER NOT NULL DEFAULT 0,
    active_minutes INTEGER NOT NULL DEFAULT 0,
    reported BOOLEAN NOT NULL DEFAULT 0,
    last_modified INTEGER NOT NULL
);

-- Daily goals, one row per user, refreshed from the tracker when the
-- source payload includes a goals block
CREATE TABLE IF NOT EXISTS activity_goals (
    user_id TEXT PRIMARY KEY,
    steps INTEGER NOT NULL DEFAULT 10000,
    floors INTEGER NOT NULL DEFAULT 10,
    distance_miles REAL NOT NULL DEFAULT 5.0,
    calories_out INTEGER NOT NULL DEFAULT 2500,
    active_minutes INTEGER NOT NULL DEFAULT 30,
    updated_at INTEGER NOT NULL
);

-- Per-metric "already notified" flags for the current goal period
CREATE TABLE IF NOT EXISTS goals_reported (
    user_id TEXT PRIMARY KEY,
    steps BOOLEAN NOT NULL DEFAULT 0,
    floors BOOLEAN NOT NULL DEFAULT 0,
    distance BOOLEAN NOT NULL DEFAULT 0,
    calories_out BOOLEAN NOT NULL DEFAULT 0,
    active_minutes BOOLEAN NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

-- User notification preferences
CREATE TABLE IF NOT EXISTS preferences (
    user_id TEXT PRIMARY KEY,
    hourly_updates BOOLEAN NOT NULL DEFAULT 1,
    goal_updates BOOLEAN NOT NULL DEFAULT 1,
    battery_level BOOLEAN NOT NULL DEFAULT 1
);

-- Last timeline card inserted for each user
CREATE TABLE IF NOT EXISTS timeline_items (
    user_id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Notification queue: raw webhook bodies awaiting async processing
CREATE TABLE IF NOT EXISTS notification_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    data BLOB NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    next_retry_at INTEGER,
    processing_started_at INTEGER,
    last_error TEXT,
    created_at INTEGER NOT NULL
);

-- Sweep predicate: unreported stats with nonzero steps
CREATE INDEX IF NOT EXISTS idx_stats_unreported
    ON activity_stats(user_id) WHERE reported = 0 AND steps > 0;

CREATE INDEX IF NOT EXISTS idx_users_linked
    ON users(user_id) WHERE tracker_token != '';

CREATE INDEX IF NOT EXISTS idx_queue_ready
    ON notification_queue(id) WHERE processing_started_at IS NULL;
`
