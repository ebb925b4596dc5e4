// Package reaper reconciles on-disk workspaces against the external tracker.
// A workspace whose item is closed is removed; anything the tracker cannot
// positively account for is kept. The reaper is fail-safe: no lookup failure,
// missing item, or unknown state ever triggers a deletion.
package reaper

import (
	"context"
	"fmt"
	"io"

	"herd/pkg/eventlog"
	"herd/pkg/tracker"
	"herd/pkg/workspace"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Checked     int
	Removed     []workspace.Workspace
	KeptOpen    []workspace.Workspace
	KeptUnknown []workspace.Workspace
	Errors      []error
}

// Clean reports whether the pass finished with no removals and no errors.
func (r Report) Clean() bool {
	return len(r.Removed) == 0 && len(r.Errors) == 0
}

// Reaper removes workspaces whose tracked item is finished.
type Reaper struct {
	Workspaces *workspace.Manager
	Tracker    tracker.Tracker
	Events     *eventlog.Logger

	// Out receives per-workspace progress lines; nil discards them.
	Out io.Writer
}

func (r *Reaper) printf(format string, args ...any) {
	if r.Out != nil {
		fmt.Fprintf(r.Out, format+"\n", args...)
	}
}

// Reap runs one reconciliation pass. With dryRun set it performs every
// lookup and classification but mutates nothing, on disk or externally.
// Per-workspace failures are collected in the report; the pass always
// visits every workspace.
func (r *Reaper) Reap(ctx context.Context, dryRun bool) (Report, error) {
	var report Report

	workspaces, err := r.Workspaces.List()
	if err != nil {
		return report, err
	}

	for _, ws := range workspaces {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		issue, err := r.Tracker.State(ctx, ws.ItemID)
		if err != nil {
			// Cannot classify, so cannot safely remove.
			report.KeptUnknown = append(report.KeptUnknown, ws)
			report.Errors = append(report.Errors, fmt.Errorf("workspace %s: %w", ws.Path, err))
			r.printf("keep  %s (lookup failed: %v)", ws.Path, err)
			continue
		}

		switch issue.State {
		case tracker.StateClosed:
			if dryRun {
				report.Removed = append(report.Removed, ws)
				r.printf("would remove %s (item #%d closed)", ws.Path, ws.ItemID)
				continue
			}
			if err := r.Workspaces.Remove(ctx, ws); err != nil {
				report.Errors = append(report.Errors, err)
				r.printf("remove %s failed: %v", ws.Path, err)
				continue
			}
			report.Removed = append(report.Removed, ws)
			_ = r.Events.Log(ctx, "reap", "reaper", ws.ItemID, 0, "", ws.Path)
			r.printf("removed %s (item #%d closed)", ws.Path, ws.ItemID)
		case tracker.StateOpen:
			report.KeptOpen = append(report.KeptOpen, ws)
			r.printf("keep  %s (item #%d open)", ws.Path, ws.ItemID)
		default:
			// NotFound and Unknown both mean we cannot prove the item is
			// finished. A transient tracker hiccup must not cost a
			// workspace with uncommitted work in it.
			report.KeptUnknown = append(report.KeptUnknown, ws)
			r.printf("keep  %s (item #%d state %s)", ws.Path, ws.ItemID, issue.State)
		}
	}

	return report, nil
}
