package transport //nolint:testpackage // white-box tests for the tmux transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"herd/pkg/channel"
)

// --- Mock CommandRunner ---

// mockCommandRunner records calls and returns pre-configured output or errors.
type mockCommandRunner struct {
	calls []mockCall
	// callFn, if set, determines output/err per call.
	callFn func(ctx context.Context, name string, args ...string) ([]byte, error)
}

type mockCall struct {
	Name string
	Args []string
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, mockCall{Name: name, Args: args})
	if m.callFn != nil {
		return m.callFn(ctx, name, args...)
	}
	return nil, nil
}

func newTestTransport(t *testing.T, runner *mockCommandRunner) (*TmuxTransport, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "messages.log")
	tr := &TmuxTransport{
		Runner:  runner,
		Log:     NewMessageLog(logPath),
		Sleeper: func(time.Duration) {},
	}
	return tr, logPath
}

func testChannel() channel.Channel {
	return channel.Channel{Name: "worker-1", Target: "herd:worker-1"}
}

func TestSend_ClearInjectCommitSequence(t *testing.T) {
	runner := &mockCommandRunner{}
	tr, _ := newTestTransport(t, runner)

	if err := tr.Send(context.Background(), testChannel(), "fix issue 42"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	wantArgs := [][]string{
		{"has-session", "-t", "herd"},
		{"send-keys", "-t", "herd:worker-1", "Escape"},
		{"send-keys", "-t", "herd:worker-1", "C-u"},
		{"send-keys", "-t", "herd:worker-1", "-l", "fix issue 42"},
		{"send-keys", "-t", "herd:worker-1", "Enter"},
	}
	if len(runner.calls) != len(wantArgs) {
		t.Fatalf("expected %d tmux calls, got %d: %+v", len(wantArgs), len(runner.calls), runner.calls)
	}
	for i, call := range runner.calls {
		if call.Name != "tmux" {
			t.Fatalf("call[%d].Name: got %q, want tmux", i, call.Name)
		}
		if strings.Join(call.Args, " ") != strings.Join(wantArgs[i], " ") {
			t.Fatalf("call[%d]: got %v, want %v", i, call.Args, wantArgs[i])
		}
	}
}

func TestSend_MissingSessionIsTargetUnavailable(t *testing.T) {
	runner := &mockCommandRunner{
		callFn: func(_ context.Context, _ string, args ...string) ([]byte, error) {
			if args[0] == "has-session" {
				return nil, fmt.Errorf("no server running")
			}
			return nil, nil
		},
	}
	tr, _ := newTestTransport(t, runner)

	err := tr.Send(context.Background(), testChannel(), "hello")
	var unavailable *TargetUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected TargetUnavailableError, got %v", err)
	}
	if unavailable.Target != "herd:worker-1" {
		t.Fatalf("target: got %q, want %q", unavailable.Target, "herd:worker-1")
	}
	// Only the probe ran; no keystrokes were injected.
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(runner.calls))
	}
}

func TestSend_LogsSuccessAndFailureDistinctly(t *testing.T) {
	fail := false
	runner := &mockCommandRunner{
		callFn: func(_ context.Context, _ string, args ...string) ([]byte, error) {
			if fail && args[0] == "has-session" {
				return nil, fmt.Errorf("gone")
			}
			return nil, nil
		},
	}
	tr, logPath := newTestTransport(t, runner)

	if err := tr.Send(context.Background(), testChannel(), "first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	fail = true
	if err := tr.Send(context.Background(), testChannel(), "second"); err == nil {
		t.Fatal("expected error for failed send")
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], `worker-1: SENT - "first"`) {
		t.Fatalf("line 0: got %q", lines[0])
	}
	if !strings.Contains(lines[1], `worker-1: FAILED - "second"`) {
		t.Fatalf("line 1: got %q", lines[1])
	}
}

func TestSend_FlattensNewlines(t *testing.T) {
	runner := &mockCommandRunner{}
	tr, _ := newTestTransport(t, runner)

	if err := tr.Send(context.Background(), testChannel(), "line1\nline2\r\nline3"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var injected string
	for _, call := range runner.calls {
		if len(call.Args) > 3 && call.Args[3] == "-l" {
			injected = call.Args[4]
		}
	}
	if strings.ContainsAny(injected, "\n\r") {
		t.Fatalf("injected text contains newlines: %q", injected)
	}
}

func TestMessageLog_LineFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "messages.log")
	log := NewMessageLog(logPath)
	log.nowFunc = func() time.Time {
		return time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	}

	if err := log.Append("manager", "status update", true); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "[2026-03-01T10:30:00Z] manager: SENT - \"status update\"\n"
	if string(data) != want {
		t.Fatalf("log line: got %q, want %q", string(data), want)
	}
}

func TestReset_ClearsWithoutLogging(t *testing.T) {
	runner := &mockCommandRunner{}
	tr, logPath := newTestTransport(t, runner)

	if err := tr.Reset(context.Background(), testChannel()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	wantArgs := [][]string{
		{"has-session", "-t", "herd"},
		{"send-keys", "-t", "herd:worker-1", "Escape"},
		{"send-keys", "-t", "herd:worker-1", "C-u"},
	}
	if len(runner.calls) != len(wantArgs) {
		t.Fatalf("expected %d tmux calls, got %d: %+v", len(wantArgs), len(runner.calls), runner.calls)
	}
	for i, call := range runner.calls {
		if strings.Join(call.Args, " ") != strings.Join(wantArgs[i], " ") {
			t.Fatalf("call[%d]: got %v, want %v", i, call.Args, wantArgs[i])
		}
	}
	if _, err := os.Stat(logPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("reset wrote to the message log: stat err = %v", err)
	}
}

func TestReset_MissingSession(t *testing.T) {
	runner := &mockCommandRunner{
		callFn: func(_ context.Context, _ string, args ...string) ([]byte, error) {
			if args[0] == "has-session" {
				return []byte("no server running"), fmt.Errorf("exit status 1")
			}
			return nil, nil
		},
	}
	tr, _ := newTestTransport(t, runner)

	err := tr.Reset(context.Background(), testChannel())
	var unavail *TargetUnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("Reset: got %v, want TargetUnavailableError", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected only the probe call, got %d", len(runner.calls))
	}
}
