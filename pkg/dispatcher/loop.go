package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LoopConfig tunes the dispatch loop.
type LoopConfig struct {
	MarkerDir            string        // worker marker directory to watch
	PollInterval         time.Duration // pure-polling interval when fsnotify is unavailable (default 5s)
	FallbackPollInterval time.Duration // safety-net poll alongside fsnotify (default 60s)
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.FallbackPollInterval == 0 {
		c.FallbackPollInterval = 60 * time.Second
	}
	return c
}

// Run watches the marker directory and assigns eligible items whenever a
// slot frees up. Falls back to pure polling if fsnotify is unavailable.
// Blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, cfg LoopConfig) {
	cfg = cfg.withDefaults()

	d.tryAssign(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.runPoll(ctx, cfg.PollInterval)
		return
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(cfg.MarkerDir); err != nil {
		d.runPoll(ctx, cfg.PollInterval)
		return
	}

	fallbackTicker := time.NewTicker(cfg.FallbackPollInterval)
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.Events:
			// A marker appeared or disappeared; capacity may have changed.
			d.tryAssign(ctx)
		case err := <-watcher.Errors:
			if err != nil {
				d.warn("marker watcher: %v", err)
			}
		case <-fallbackTicker.C:
			d.tryAssign(ctx)
		}
	}
}

// runPoll is the fallback loop when fsnotify is unavailable.
func (d *Dispatcher) runPoll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tryAssign(ctx)
		}
	}
}

// tryAssign assigns eligible items to free workers until the pool fills or
// the eligible list runs out. One tracker query serves the whole pass.
func (d *Dispatcher) tryAssign(ctx context.Context) {
	free, err := d.store.FindFree()
	if err != nil || free == 0 {
		return
	}

	issues, err := d.tracker.Eligible(ctx)
	if err != nil {
		d.warn("eligible items: %v", err)
		return
	}

	for _, issue := range issues {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.Assign(ctx, issue); err != nil {
			if errors.Is(err, ErrNoCapacity) {
				return
			}
			d.warn("assign issue %d: %v", issue.Number, err)
		}
	}
}
