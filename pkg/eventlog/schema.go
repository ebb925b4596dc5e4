// Package eventlog records and queries dispatcher lifecycle events in a
// SQLite database. The event log is observability, not coordination state:
// marker files remain the sole durable record of in-flight assignments.
package eventlog

import "time"

// SchemaDDL defines the SQLite schema for the event log.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Runtime event log: assignment, completion, and reap lifecycle events
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    item INTEGER,
    worker INTEGER,
    attempt TEXT,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS events_worker_idx ON events(worker);
CREATE INDEX IF NOT EXISTS events_type_idx ON events(type);
`

// Event represents a row in the events table.
type Event struct {
	ID        int64
	Type      string
	Source    string
	Item      int
	Worker    int
	Attempt   string
	Payload   string
	CreatedAt time.Time
}
