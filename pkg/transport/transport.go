// Package transport delivers text messages to agent channels. The production
// implementation injects keystrokes into tmux panes; delivery is best-effort
// and unacknowledged — a nil error means the bytes were injected, not that
// the recipient processed them.
package transport

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"herd/pkg/channel"
)

// CommandRunner abstracts command execution for testability.
// Production implementation uses os/exec; tests provide a mock.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its combined output.
func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return out, err
}

// TargetUnavailableError is returned when a channel's hosting tmux session
// does not exist at send time.
type TargetUnavailableError struct {
	Target string
}

func (e *TargetUnavailableError) Error() string {
	return fmt.Sprintf("target %s unavailable: tmux session not found", e.Target)
}

// Transport sends a message to a resolved channel. Reset returns the
// channel's destination to an idle, waiting state without delivering a
// message.
type Transport interface {
	Send(ctx context.Context, ch channel.Channel, msg string) error
	Reset(ctx context.Context, ch channel.Channel) error
}

// settleDelay is the pause after each injection step. The destination is an
// interactive TUI that may be mid-output; it needs time to process each
// keystroke batch before the next arrives.
const settleDelay = 500 * time.Millisecond

// TmuxTransport implements Transport by injecting keystrokes into a tmux
// pane. The three-step protocol (clear, inject, commit) exists because the
// destination is a long-lived interactive process that may be mid-output.
type TmuxTransport struct {
	Runner  CommandRunner
	Log     *MessageLog
	Sleeper func(time.Duration) // optional; overrides time.Sleep for testing
}

// NewTmuxTransport creates a TmuxTransport with the default ExecRunner.
func NewTmuxTransport(log *MessageLog) *TmuxTransport {
	return &TmuxTransport{Runner: &ExecRunner{}, Log: log}
}

// Send delivers msg to the channel's pane. Every call, success or failure,
// appends one message-log entry; failed attempts are logged distinctly from
// successes.
func (t *TmuxTransport) Send(ctx context.Context, ch channel.Channel, msg string) error {
	err := t.send(ctx, ch, msg)
	if t.Log != nil {
		if logErr := t.Log.Append(ch.Name, msg, err == nil); logErr != nil && err == nil {
			err = logErr
		}
	}
	return err
}

func (t *TmuxTransport) send(ctx context.Context, ch channel.Channel, msg string) error {
	session, _, _ := strings.Cut(ch.Target, ":")
	if _, err := t.Runner.Run(ctx, "tmux", "has-session", "-t", session); err != nil {
		return &TargetUnavailableError{Target: ch.Target}
	}

	// Clear signal: interrupt whatever the pane is doing and empty its
	// input line, then let the TUI settle.
	if _, err := t.Runner.Run(ctx, "tmux", "send-keys", "-t", ch.Target, "Escape"); err != nil {
		return fmt.Errorf("tmux clear %s: %w", ch.Target, err)
	}
	if _, err := t.Runner.Run(ctx, "tmux", "send-keys", "-t", ch.Target, "C-u"); err != nil {
		return fmt.Errorf("tmux clear %s: %w", ch.Target, err)
	}
	t.sleep(settleDelay)

	// Inject the message text in literal mode so special characters survive.
	if _, err := t.Runner.Run(ctx, "tmux", "send-keys", "-t", ch.Target, "-l", sanitize(msg)); err != nil {
		return fmt.Errorf("tmux inject %s: %w", ch.Target, err)
	}
	t.sleep(settleDelay)

	// Commit signal.
	if _, err := t.Runner.Run(ctx, "tmux", "send-keys", "-t", ch.Target, "Enter"); err != nil {
		return fmt.Errorf("tmux commit %s: %w", ch.Target, err)
	}
	t.sleep(settleDelay)

	return nil
}

// Reset interrupts whatever the pane is doing and clears its input line,
// leaving the destination idle. Nothing is logged: no message is delivered.
func (t *TmuxTransport) Reset(ctx context.Context, ch channel.Channel) error {
	session, _, _ := strings.Cut(ch.Target, ":")
	if _, err := t.Runner.Run(ctx, "tmux", "has-session", "-t", session); err != nil {
		return &TargetUnavailableError{Target: ch.Target}
	}
	if _, err := t.Runner.Run(ctx, "tmux", "send-keys", "-t", ch.Target, "Escape"); err != nil {
		return fmt.Errorf("tmux reset %s: %w", ch.Target, err)
	}
	if _, err := t.Runner.Run(ctx, "tmux", "send-keys", "-t", ch.Target, "C-u"); err != nil {
		return fmt.Errorf("tmux reset %s: %w", ch.Target, err)
	}
	return nil
}

// sleep pauses for the given duration. It uses the Sleeper if set (for
// testing), otherwise falls back to time.Sleep.
func (t *TmuxTransport) sleep(d time.Duration) {
	if t.Sleeper != nil {
		t.Sleeper(d)
		return
	}
	time.Sleep(d)
}

// sanitize flattens a message to a single line. Multi-line injection would
// submit each line separately to the pane.
func sanitize(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	return msg
}
