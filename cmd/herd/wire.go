package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"herd/pkg/channel"
	"herd/pkg/config"
	"herd/pkg/dispatcher"
	"herd/pkg/eventlog"
	"herd/pkg/state"
	"herd/pkg/tracker"
	"herd/pkg/transport"
	"herd/pkg/workspace"
)

// app bundles the wired components behind every subcommand.
type app struct {
	cfg      config.Config
	paths    *Paths
	store    *state.Store
	registry *channel.Registry
	tp       transport.Transport
	tracker  tracker.Tracker
	wsm      *workspace.Manager
	events   *eventlog.Logger
	db       *sql.DB
}

// newApp loads configuration and wires the component graph. The event log
// is optional: a database open failure degrades to a nil (discarding)
// logger with a warning rather than blocking operation.
func newApp(ctx context.Context) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		paths:    paths,
		store:    state.NewStore(paths.MarkerDir, cfg.PoolSize),
		registry: channel.New(cfg.Session, cfg.PoolSize),
		tp:       transport.NewTmuxTransport(transport.NewMessageLog(paths.MessageLog)),
		tracker:  tracker.NewGHTracker(&tracker.ExecRunner{}),
		wsm:      workspace.NewManager(cfg.RepoRoot, cfg.WorkspaceRoot, cfg.Trunk, &workspace.ExecRunner{}),
	}

	db, err := openDB(paths.EventsDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: event log unavailable: %v\n", err)
		return a, nil
	}
	logger, err := eventlog.NewLogger(ctx, db)
	if err != nil {
		_ = db.Close()
		fmt.Fprintf(os.Stderr, "warning: event log unavailable: %v\n", err)
		return a, nil
	}
	a.db = db
	a.events = logger
	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// dispatcher builds a Dispatcher over the app's components.
func (a *app) dispatcher() *dispatcher.Dispatcher {
	return dispatcher.New(dispatcher.Deps{
		Store:      a.store,
		Workspaces: a.wsm,
		Tracker:    a.tracker,
		Transport:  a.tp,
		Registry:   a.registry,
		SetupCmd:   a.cfg.SetupCmd,
		Events:     a.events,
		Confirmer:  &dispatcher.PaneProbeConfirmer{Runner: &transport.ExecRunner{}},
		WarnFn: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	})
}
