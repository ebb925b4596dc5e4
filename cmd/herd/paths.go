package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds all resolved herd state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	HerdHome     string // ~/.herd or HERD_HOME
	MarkerDir    string // worker state markers (HERD_STATE_DIR)
	EventsDBPath string // events.db (HERD_DB_PATH)
	MessageLog   string // messages.log (HERD_LOG_PATH)
}

// ResolvePaths returns all herd paths, respecting env var overrides.
// Environment variables:
//   - HERD_HOME: base directory for all herd state (default: ~/.herd)
//   - HERD_STATE_DIR: worker marker directory (default: $HERD_HOME/state)
//   - HERD_DB_PATH: event log database (default: $HERD_HOME/events.db)
//   - HERD_LOG_PATH: message log (default: $HERD_HOME/messages.log)
func ResolvePaths() (*Paths, error) {
	home, err := resolveHerdHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		HerdHome:     home,
		MarkerDir:    resolvePathWithEnv("HERD_STATE_DIR", home, "state"),
		EventsDBPath: resolvePathWithEnv("HERD_DB_PATH", home, "events.db"),
		MessageLog:   resolvePathWithEnv("HERD_LOG_PATH", home, "messages.log"),
	}, nil
}

// EnsureDirs creates the directories herd writes into.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.HerdHome, p.MarkerDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// resolveHerdHome returns the herd home directory from HERD_HOME or ~/.herd.
func resolveHerdHome() (string, error) {
	if v := os.Getenv("HERD_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".herd"), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
