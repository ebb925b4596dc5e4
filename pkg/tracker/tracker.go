// Package tracker is the external issue-tracker surface. Items are owned by
// GitHub; this package only reads issue state, mutates the assignee, and
// inspects pull requests, all through the gh CLI with JSON output.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
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

// IssueState classifies an item's external state.
type IssueState string

// Issue state constants. Anything the tracker reports that doesn't map to
// open or closed is Unknown; lookups that positively fail to resolve are
// NotFound.
const (
	StateOpen     IssueState = "open"
	StateClosed   IssueState = "closed"
	StateNotFound IssueState = "not_found"
	StateUnknown  IssueState = "unknown"
)

// Issue is an externally tracked work item.
type Issue struct {
	Number int
	Title  string
	State  IssueState
}

// PullStatus summarizes the pull request opened from an item's branch.
type PullStatus struct {
	Number        int
	URL           string
	State         string
	ChecksPassed  int
	ChecksFailed  int
	ChecksPending int
}

// AssignError is an external assignee mutation failure.
type AssignError struct {
	Number int
	Op     string // "assign" or "unassign"
	Err    error
}

func (e *AssignError) Error() string {
	return fmt.Sprintf("%s issue %d: %v", e.Op, e.Number, e.Err)
}

func (e *AssignError) Unwrap() error { return e.Err }

// QueryError is an external tracker read failure.
type QueryError struct {
	Number int
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query issue %d: %v", e.Number, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Tracker is the query/mutation surface the core consumes.
type Tracker interface {
	Eligible(ctx context.Context) ([]Issue, error)
	State(ctx context.Context, number int) (Issue, error)
	Assign(ctx context.Context, number int) error
	Unassign(ctx context.Context, number int) error
	PullForBranch(ctx context.Context, branch string) (*PullStatus, error)
	Comment(ctx context.Context, number int, body string) error
}

// GHTracker implements Tracker by shelling out to the gh CLI.
type GHTracker struct {
	runner CommandRunner
}

// NewGHTracker creates a GHTracker backed by the given CommandRunner.
func NewGHTracker(runner CommandRunner) *GHTracker {
	return &GHTracker{runner: runner}
}

// Eligible runs `gh issue list` for open, unassigned issues.
func (t *GHTracker) Eligible(ctx context.Context) ([]Issue, error) {
	out, err := t.runner.Run(ctx, "gh", "issue", "list",
		"--state", "open", "--search", "no:assignee", "--json", "number,title")
	if err != nil {
		return nil, &QueryError{Err: fmt.Errorf("gh issue list: %w", err)}
	}

	var rows []struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(out, &rows); err != nil {
		return nil, &QueryError{Err: fmt.Errorf("parse gh issue list output: %w", err)}
	}

	issues := make([]Issue, 0, len(rows))
	for _, r := range rows {
		issues = append(issues, Issue{Number: r.Number, Title: r.Title, State: StateOpen})
	}
	return issues, nil
}

// State runs `gh issue view` and classifies the result. A lookup that
// positively fails to resolve returns StateNotFound with a nil error;
// transport or parse failures return a QueryError (callers treat those as
// Unknown, never as deletable).
func (t *GHTracker) State(ctx context.Context, number int) (Issue, error) {
	out, err := t.runner.Run(ctx, "gh", "issue", "view", strconv.Itoa(number),
		"--json", "number,title,state")
	if err != nil {
		if isNotFound(string(out)) {
			return Issue{Number: number, State: StateNotFound}, nil
		}
		return Issue{Number: number, State: StateUnknown},
			&QueryError{Number: number, Err: fmt.Errorf("gh issue view: %w", err)}
	}

	var row struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal(out, &row); err != nil {
		return Issue{Number: number, State: StateUnknown},
			&QueryError{Number: number, Err: fmt.Errorf("parse gh issue view output: %w", err)}
	}

	issue := Issue{Number: row.Number, Title: row.Title}
	switch strings.ToUpper(row.State) {
	case "OPEN":
		issue.State = StateOpen
	case "CLOSED":
		issue.State = StateClosed
	default:
		issue.State = StateUnknown
	}
	return issue, nil
}

// isNotFound recognizes gh's resolution failures for missing issues.
func isNotFound(output string) bool {
	return strings.Contains(output, "Could not resolve to an issue") ||
		strings.Contains(output, "no issues found")
}

// Assign sets the current user as the issue's assignee.
func (t *GHTracker) Assign(ctx context.Context, number int) error {
	_, err := t.runner.Run(ctx, "gh", "issue", "edit", strconv.Itoa(number),
		"--add-assignee", "@me")
	if err != nil {
		return &AssignError{Number: number, Op: "assign", Err: err}
	}
	return nil
}

// Unassign removes the current user from the issue's assignees.
func (t *GHTracker) Unassign(ctx context.Context, number int) error {
	_, err := t.runner.Run(ctx, "gh", "issue", "edit", strconv.Itoa(number),
		"--remove-assignee", "@me")
	if err != nil {
		return &AssignError{Number: number, Op: "unassign", Err: err}
	}
	return nil
}

// PullForBranch runs `gh pr list --head <branch>` and summarizes the first
// matching pull request. Returns nil when no PR exists for the branch.
func (t *GHTracker) PullForBranch(ctx context.Context, branch string) (*PullStatus, error) {
	out, err := t.runner.Run(ctx, "gh", "pr", "list",
		"--head", branch, "--state", "all",
		"--json", "number,url,state,statusCheckRollup")
	if err != nil {
		return nil, &QueryError{Err: fmt.Errorf("gh pr list: %w", err)}
	}

	var rows []struct {
		Number            int    `json:"number"`
		URL               string `json:"url"`
		State             string `json:"state"`
		StatusCheckRollup []struct {
			Conclusion string `json:"conclusion"`
		} `json:"statusCheckRollup"`
	}
	if err := json.Unmarshal(out, &rows); err != nil {
		return nil, &QueryError{Err: fmt.Errorf("parse gh pr list output: %w", err)}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	ps := &PullStatus{Number: r.Number, URL: r.URL, State: r.State}
	for _, check := range r.StatusCheckRollup {
		switch strings.ToUpper(check.Conclusion) {
		case "SUCCESS", "NEUTRAL", "SKIPPED":
			ps.ChecksPassed++
		case "FAILURE", "CANCELLED", "TIMED_OUT", "ACTION_REQUIRED", "ERROR":
			ps.ChecksFailed++
		default:
			ps.ChecksPending++
		}
	}
	return ps, nil
}

// Comment posts a comment on the issue.
func (t *GHTracker) Comment(ctx context.Context, number int, body string) error {
	_, err := t.runner.Run(ctx, "gh", "issue", "comment", strconv.Itoa(number),
		"--body", body)
	if err != nil {
		return &QueryError{Number: number, Err: fmt.Errorf("gh issue comment: %w", err)}
	}
	return nil
}

// Summary renders a one-line human summary of a pull status, used in
// completion reports forwarded to worker channels.
func (p *PullStatus) Summary() string {
	if p == nil {
		return "no pull request found"
	}
	return fmt.Sprintf("PR #%d (%s): %d checks passed, %d failed, %d pending — %s",
		p.Number, strings.ToLower(p.State), p.ChecksPassed, p.ChecksFailed, p.ChecksPending, p.URL)
}
