// Package dispatcher implements the herd assignment protocol: it polls the
// external tracker for eligible items, selects a free worker slot, provisions
// an isolated workspace, brings the environment up, and notifies the worker
// channel. Any failure after the external assignee mutation rolls every side
// effect back, leaving the tracker and the pool exactly as before the
// attempt.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"herd/pkg/channel"
	"herd/pkg/envprobe"
	"herd/pkg/eventlog"
	"herd/pkg/state"
	"herd/pkg/tracker"
	"herd/pkg/transport"
	"herd/pkg/workspace"
)

// ErrNoCapacity is returned when no worker slot is free. The caller may
// retry later; no external mutation was performed.
var ErrNoCapacity = errors.New("no free worker")

// IsolationError is returned when a freshly provisioned workspace failed
// isolation verification. Notifying a worker into an unsafe workspace is
// never acceptable, so this is fatal to the attempt.
type IsolationError struct {
	Workspace workspace.Workspace
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("workspace %s failed isolation verification (branch %s)", e.Workspace.Path, e.Workspace.Branch)
}

// Confirmer is the explicit confirmation gate between notifying a worker and
// marking its setup confirmed. Confirm blocks until the worker session is
// affirmed live, the context is cancelled, or the probe gives up; a non-nil
// error abandons the assignment and triggers rollback.
type Confirmer interface {
	Confirm(ctx context.Context, workerID int, ch channel.Channel) error
}

// Dispatcher orchestrates assignment and completion for one worker pool.
// It runs as a single sequential control loop; if two dispatcher processes
// ever race, the busy-marker write is the exclusion point and the loser
// rolls back as if the pool were full.
type Dispatcher struct {
	store      *state.Store
	workspaces *workspace.Manager
	tracker    tracker.Tracker
	transport  transport.Transport
	registry   *channel.Registry
	setup      *envprobe.Runner
	setupCmd   string // configured override for bring-up detection
	events     *eventlog.Logger
	confirmer  Confirmer

	// warnFn receives non-fatal diagnostics; injectable for testing.
	warnFn func(format string, args ...any)
}

// Deps bundles the dispatcher's collaborators.
type Deps struct {
	Store      *state.Store
	Workspaces *workspace.Manager
	Tracker    tracker.Tracker
	Transport  transport.Transport
	Registry   *channel.Registry
	Setup      *envprobe.Runner
	SetupCmd   string
	Events     *eventlog.Logger
	Confirmer  Confirmer
	WarnFn     func(format string, args ...any)
}

// New creates a Dispatcher. Events may be nil (discard); everything else is
// required.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		store:      deps.Store,
		workspaces: deps.Workspaces,
		tracker:    deps.Tracker,
		transport:  deps.Transport,
		registry:   deps.Registry,
		setup:      deps.Setup,
		setupCmd:   deps.SetupCmd,
		events:     deps.Events,
		confirmer:  deps.Confirmer,
		warnFn:     deps.WarnFn,
	}
	if d.setup == nil {
		d.setup = &envprobe.Runner{}
	}
	if d.warnFn == nil {
		d.warnFn = func(string, ...any) {}
	}
	return d
}

// warn reports a non-fatal diagnostic.
func (d *Dispatcher) warn(format string, args ...any) {
	d.warnFn(format, args...)
}

// rollbackState captures what a failed attempt must undo.
type rollbackState struct {
	attempt    string
	workerID   int
	itemID     int
	assigned   bool // external assignee was set
	created    bool // workspace was created by this attempt
	ws         workspace.Workspace
	markedBusy bool
}

// rollback undoes every side effect of a failed attempt. It is symmetric
// and idempotent: a reused pre-existing workspace is left untouched, and
// releasing markers that were never written is a no-op.
func (d *Dispatcher) rollback(ctx context.Context, rb rollbackState) {
	if rb.markedBusy {
		if err := d.store.Release(rb.workerID); err != nil {
			d.warn("rollback: release worker %d: %v", rb.workerID, err)
		}
	}
	if rb.created {
		if err := d.workspaces.Remove(ctx, rb.ws); err != nil {
			d.warn("rollback: remove workspace %s: %v", rb.ws.Path, err)
		}
	}
	if rb.assigned {
		if err := d.tracker.Unassign(ctx, rb.itemID); err != nil {
			d.warn("rollback: unassign issue %d: %v", rb.itemID, err)
		}
	}
	_ = d.events.Log(ctx, "rollback", "dispatcher", rb.itemID, rb.workerID, rb.attempt, "")
}

// Assign runs the assignment protocol for issue and returns the selected
// worker slot. Terminal failures leave no partial state behind: the external
// assignee is unset, no busy marker exists, and any workspace created during
// the attempt is removed.
func (d *Dispatcher) Assign(ctx context.Context, issue tracker.Issue) (int, error) {
	attempt := uuid.New().String()

	// Selecting. Selection alone has no side effect: nothing external is
	// touched before a free slot with a resolvable channel is in hand.
	workerID, err := d.store.FindFree()
	if err != nil {
		return 0, fmt.Errorf("scan worker pool: %w", err)
	}
	if workerID == 0 {
		return 0, ErrNoCapacity
	}
	ch, err := d.registry.Resolve(channel.WorkerName(workerID))
	if err != nil {
		return 0, err
	}

	rb := rollbackState{attempt: attempt, workerID: workerID, itemID: issue.Number}

	// ExternalAssigning.
	if err := d.tracker.Assign(ctx, issue.Number); err != nil {
		_ = d.events.Log(ctx, "assign_failed", "dispatcher", issue.Number, workerID, attempt, err.Error())
		return 0, err
	}
	rb.assigned = true

	// Provisioning.
	ws, created, err := d.workspaces.Ensure(ctx, issue.Number)
	if err != nil {
		d.rollback(ctx, rb)
		return 0, err
	}
	rb.ws = ws
	rb.created = created

	// A new workspace that fails isolation verification is never handed to
	// a worker. Re-checks of a reused workspace only warn.
	if !d.workspaces.VerifyIsolation(ctx, ws) {
		if created {
			d.rollback(ctx, rb)
			return 0, &IsolationError{Workspace: ws}
		}
		d.warn("reused workspace %s failed isolation re-check", ws.Path)
	}

	// SettingUp.
	setupCmd := envprobe.Detect(ws.Path, d.setupCmd)
	if err := d.setup.Run(ctx, ws.Path, setupCmd); err != nil {
		_ = d.events.Log(ctx, "setup_failed", "dispatcher", issue.Number, workerID, attempt, err.Error())
		d.rollback(ctx, rb)
		return 0, err
	}

	// Notified. The marker write is the exclusion point for concurrent
	// dispatchers: losing it means the pool filled underneath us.
	if err := d.store.MarkBusy(workerID, issue.Number, issue.Title); err != nil {
		d.rollback(ctx, rb)
		var alreadyBusy *state.AlreadyBusyError
		if errors.As(err, &alreadyBusy) {
			return 0, ErrNoCapacity
		}
		return 0, err
	}
	rb.markedBusy = true

	briefing := fmt.Sprintf(
		"You are assigned issue #%d: %s. Work in %s on branch %s, then push the branch and open a pull request.",
		issue.Number, issue.Title, ws.Path, ws.Branch)
	if err := d.transport.Send(ctx, ch, briefing); err != nil {
		d.rollback(ctx, rb)
		return 0, err
	}
	_ = d.events.Log(ctx, "assign", "dispatcher", issue.Number, workerID, attempt,
		fmt.Sprintf(`{"path":%q,"branch":%q}`, ws.Path, ws.Branch))

	// Confirmed. The gate blocks until an external affirmation arrives;
	// cancellation abandons the assignment.
	if err := d.confirmer.Confirm(ctx, workerID, ch); err != nil {
		_ = d.events.Log(ctx, "confirm_abandoned", "dispatcher", issue.Number, workerID, attempt, err.Error())
		d.rollback(ctx, rb)
		return 0, fmt.Errorf("confirmation for worker %d: %w", workerID, err)
	}
	if err := d.store.MarkSetupConfirmed(workerID); err != nil {
		d.rollback(ctx, rb)
		return 0, err
	}
	_ = d.events.Log(ctx, "confirmed", "dispatcher", issue.Number, workerID, attempt, "")

	return workerID, nil
}

// Complete processes a worker completion report: it summarizes the item's
// pull request state, records the summary as a comment on the tracker issue,
// forwards it to the worker's channel, then unconditionally releases the
// slot, tears down the workspace, and resets the channel. Tracker errors are
// downgraded to warnings; slot reclamation is never blocked by transient
// tracker unavailability.
func (d *Dispatcher) Complete(ctx context.Context, workerID int) error {
	itemID, payload, busy := d.store.Busy(workerID)
	if !busy {
		d.warn("worker %d has no busy marker; releasing anyway", workerID)
	}

	ch, chErr := d.registry.Resolve(channel.WorkerName(workerID))
	if chErr != nil {
		return chErr
	}

	if busy {
		summary := "tracker unavailable, no pull request status"
		ps, err := d.tracker.PullForBranch(ctx, workspace.Name(itemID))
		if err != nil {
			d.warn("pull request lookup for item %d: %v", itemID, err)
		} else {
			summary = ps.Summary()
			if err := d.tracker.Comment(ctx, itemID, summary); err != nil {
				d.warn("comment on item %d: %v", itemID, err)
			}
		}
		if err := d.transport.Send(ctx, ch, fmt.Sprintf("Completed %s. %s", payload, summary)); err != nil {
			d.warn("completion summary to worker %d: %v", workerID, err)
		}
	}

	// Unconditional release: markers, workspace, channel.
	if err := d.store.Release(workerID); err != nil {
		return err
	}
	if busy {
		if err := d.workspaces.Remove(ctx, d.workspaces.Lookup(itemID)); err != nil {
			d.warn("remove workspace for item %d: %v", itemID, err)
		}
	}
	if err := d.transport.Reset(ctx, ch); err != nil {
		d.warn("reset channel for worker %d: %v", workerID, err)
	}

	_ = d.events.Log(ctx, "release", "dispatcher", itemID, workerID, "", "")
	return nil
}
