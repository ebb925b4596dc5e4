package eventlog //nolint:testpackage // white-box tests for the event log

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestLog(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger, err := NewLogger(context.Background(), db)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return logger, path
}

func TestLogAndQuery_RoundTrip(t *testing.T) {
	logger, path := newTestLog(t)
	ctx := context.Background()

	if err := logger.Log(ctx, "assign", "dispatcher", 42, 1, "attempt-1", `{"branch":"item-42"}`); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Log(ctx, "release", "dispatcher", 42, 1, "attempt-1", ""); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Log(ctx, "assign", "dispatcher", 50, 2, "attempt-2", ""); err != nil {
		t.Fatalf("Log: %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer func() { _ = reader.Close() }()

	events, err := reader.Query(ctx, QueryOpts{Worker: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for worker 1, got %d", len(events))
	}
	// Newest first.
	if events[0].Type != "release" || events[1].Type != "assign" {
		t.Fatalf("order: got %q, %q", events[0].Type, events[1].Type)
	}
	if events[1].Item != 42 || events[1].Attempt != "attempt-1" {
		t.Fatalf("event fields: got %+v", events[1])
	}
	if events[1].CreatedAt.IsZero() {
		t.Fatal("created_at should be populated")
	}
}

func TestQuery_TypeFilterAndLimit(t *testing.T) {
	logger, path := newTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := logger.Log(ctx, "assign", "dispatcher", i, 1, "", ""); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := logger.Log(ctx, "reap", "reaper", 9, 0, "", ""); err != nil {
		t.Fatalf("Log: %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer func() { _ = reader.Close() }()

	events, err := reader.Query(ctx, QueryOpts{EventType: "assign", Limit: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, e := range events {
		if e.Type != "assign" {
			t.Fatalf("type filter leaked: got %q", e.Type)
		}
	}
}

func TestNewReader_MissingDatabase(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope.db"))
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var logger *Logger
	if err := logger.Log(context.Background(), "assign", "dispatcher", 1, 1, "", ""); err != nil {
		t.Fatalf("nil logger should discard, got %v", err)
	}
}
