// Package workspace manages per-item isolated workspaces. A workspace is a
// git worktree in a private directory, checked out on a branch derived from
// the item id. Directory and branch are always named from the same id, and a
// workspace is never created on the trunk branch.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its combined output.
func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Name returns the workspace directory and branch name for an item id.
func Name(itemID int) string {
	return fmt.Sprintf("item-%d", itemID)
}

// namePattern matches workspace directory names and captures the item id.
var namePattern = regexp.MustCompile(`^item-(\d+)$`)

// ParseName extracts the item id from a workspace directory name. Returns
// false for anything that doesn't follow the item-<id> convention.
func ParseName(name string) (int, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// Workspace is an isolated, branch-scoped working directory for one item.
type Workspace struct {
	ItemID int
	Path   string
	Branch string
}

// ProvisionError is returned when a workspace checkout cannot be created.
type ProvisionError struct {
	ItemID int
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision workspace for item %d: %v", e.ItemID, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// RemoveError is returned when both removal strategies fail and the
// workspace may be partially removed.
type RemoveError struct {
	Path string
	Err  error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("workspace %s partially removed: %v", e.Path, e.Err)
}

func (e *RemoveError) Unwrap() error { return e.Err }

// Manager creates, verifies, and removes workspaces under a single root
// directory. Operations on different item ids are safe to run concurrently;
// concurrent mutation of the same id is not supported.
type Manager struct {
	repoRoot string
	root     string
	trunk    string
	runner   CommandRunner
}

// NewManager returns a Manager rooted at root (the directory holding all
// workspaces) for the repository at repoRoot with the given trunk branch.
func NewManager(repoRoot, root, trunk string, runner CommandRunner) *Manager {
	return &Manager{repoRoot: repoRoot, root: root, trunk: trunk, runner: runner}
}

// Lookup returns the workspace value for itemID without touching disk. The
// returned workspace may or may not exist; Remove tolerates either.
func (m *Manager) Lookup(itemID int) Workspace {
	name := Name(itemID)
	return Workspace{ItemID: itemID, Path: filepath.Join(m.root, name), Branch: name}
}

// Ensure returns the workspace for itemID, creating it if needed. The second
// return value reports whether this call created it; callers use that to
// decide what rollback may remove. Creation refreshes the trunk ref first,
// then checks out a fresh branch named from the item id.
func (m *Manager) Ensure(ctx context.Context, itemID int) (Workspace, bool, error) {
	name := Name(itemID)
	ws := Workspace{ItemID: itemID, Path: filepath.Join(m.root, name), Branch: name}

	if _, err := os.Stat(ws.Path); err == nil {
		return ws, false, nil
	}

	// Refresh the trunk ref so new branches fork from current upstream
	// state. When the fetch succeeds the worktree bases on the freshly
	// fetched remote-tracking ref; offline operation falls back to the
	// local trunk.
	base := m.trunk
	if _, err := m.runner.Run(ctx, "git", "-C", m.repoRoot, "fetch", "origin", m.trunk); err == nil {
		base = "origin/" + m.trunk
	}

	out, err := m.runner.Run(ctx, "git", "-C", m.repoRoot,
		"worktree", "add", ws.Path, "-b", ws.Branch, base)
	if err != nil {
		return Workspace{}, false, &ProvisionError{ItemID: itemID, Err: fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out)))}
	}
	return ws, true, nil
}

// VerifyIsolation reports whether ws is a genuine secondary worktree on its
// own branch. It returns false rather than an error so call sites decide how
// fatal a failure is: fatal for a freshly provisioned workspace, tolerable
// for cosmetic re-checks.
func (m *Manager) VerifyIsolation(ctx context.Context, ws Workspace) bool {
	// A secondary worktree's .git is a pointer file, not a directory.
	info, err := os.Stat(filepath.Join(ws.Path, ".git"))
	if err != nil || info.IsDir() {
		return false
	}

	out, err := m.runner.Run(ctx, "git", "-C", ws.Path, "branch", "--show-current")
	if err != nil {
		return false
	}
	branch := strings.TrimSpace(string(out))
	return branch != "" && branch != m.trunk
}

// Remove deletes ws. It tries the structured worktree removal first and
// falls back to recursive deletion; a RemoveError is returned only when both
// fail. Removing a workspace that does not exist succeeds.
func (m *Manager) Remove(ctx context.Context, ws Workspace) error {
	if _, err := os.Stat(ws.Path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	_, wtErr := m.runner.Run(ctx, "git", "-C", m.repoRoot,
		"worktree", "remove", ws.Path, "--force")
	if wtErr == nil {
		return nil
	}

	if rmErr := os.RemoveAll(ws.Path); rmErr != nil {
		return &RemoveError{Path: ws.Path, Err: errors.Join(wtErr, rmErr)}
	}
	// Directory is gone; ask git to forget the stale worktree entry.
	_, _ = m.runner.Run(ctx, "git", "-C", m.repoRoot, "worktree", "prune")
	return nil
}

// List enumerates existing workspaces under the root whose directory name
// follows the item-<id> convention. A missing root is an empty list.
func (m *Manager) List() ([]Workspace, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace root: %w", err)
	}

	var out []Workspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, ok := ParseName(entry.Name())
		if !ok {
			continue
		}
		out = append(out, Workspace{
			ItemID: id,
			Path:   filepath.Join(m.root, entry.Name()),
			Branch: entry.Name(),
		})
	}
	return out, nil
}
