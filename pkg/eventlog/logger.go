package eventlog

import (
	"context"
	"database/sql"
	"fmt"
)

// Logger appends events to the log. A nil Logger discards everything so
// callers never have to guard log statements.
type Logger struct {
	db *sql.DB
}

// NewLogger initializes the schema and returns a Logger over db.
func NewLogger(ctx context.Context, db *sql.DB) (*Logger, error) {
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		return nil, fmt.Errorf("init event log schema: %w", err)
	}
	return &Logger{db: db}, nil
}

// Log appends one event. item and worker may be zero when not applicable;
// attempt correlates all events of one assignment attempt.
func (l *Logger) Log(ctx context.Context, evType, source string, item, worker int, attempt, payload string) error {
	if l == nil || l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events (type, source, item, worker, attempt, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		evType, source, item, worker, attempt, payload)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}
