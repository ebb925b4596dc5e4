package main

import (
	"context"
	"os"
	"path/filepath"

	"herd/pkg/config"
	"herd/pkg/eventlog"
	"herd/pkg/state"
)

// eventTailLimit is how many recent events the dashboard shows.
const eventTailLimit = 50

// herdHome returns the herd state directory from HERD_HOME or ~/.herd.
func herdHome() string {
	if v := os.Getenv("HERD_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".herd")
}

// markerDir returns the worker marker directory, respecting HERD_STATE_DIR.
func markerDir() string {
	if v := os.Getenv("HERD_STATE_DIR"); v != "" {
		return v
	}
	return filepath.Join(herdHome(), "state")
}

// eventsDBPath returns the event log path, respecting HERD_DB_PATH.
func eventsDBPath() string {
	if v := os.Getenv("HERD_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join(herdHome(), "events.db")
}

// fetchWorkers reads the current pool snapshot from the marker directory.
// Returns nil when the snapshot cannot be read (fresh install, no setup yet).
func fetchWorkers() []state.WorkerInfo {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil
	}
	workers, err := state.NewStore(markerDir(), cfg.PoolSize).Snapshot()
	if err != nil {
		return nil
	}
	return workers
}

// fetchEvents reads the most recent dispatcher events, newest first.
func fetchEvents(ctx context.Context) []eventlog.Event {
	reader, err := eventlog.NewReader(eventsDBPath())
	if err != nil {
		return nil
	}
	defer func() { _ = reader.Close() }()

	events, err := reader.Query(ctx, eventlog.QueryOpts{Limit: eventTailLimit})
	if err != nil {
		return nil
	}
	return events
}
