package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"herd/pkg/channel"
)

// CmdRunner abstracts command execution for testability.
type CmdRunner interface {
	Run(name string, args ...string) (string, error)
}

// ExecRunner implements CmdRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its combined output.
func (e *ExecRunner) Run(name string, args ...string) (string, error) {
	cmd := exec.CommandContext(context.Background(), name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// defaultReadyTimeout is the default time to wait for the agent to become
// ready. Agent startup hooks can take tens of seconds.
const defaultReadyTimeout = 60 * time.Second

// pollInterval is the time between readiness checks.
const pollInterval = 500 * time.Millisecond

// TmuxSession manages a tmux session with the herd layout: a manager window
// plus one numbered window per worker slot.
type TmuxSession struct {
	Name         string
	Runner       CmdRunner
	Sleeper      func(time.Duration) // optional; overrides time.Sleep for testing
	ReadyTimeout time.Duration       // timeout for readiness polling; 0 means defaultReadyTimeout
}

// NewTmuxSession creates a TmuxSession with the default ExecRunner.
func NewTmuxSession(name string) *TmuxSession {
	return &TmuxSession{Name: name, Runner: &ExecRunner{}}
}

// Exists checks whether the named tmux session is running.
func (s *TmuxSession) Exists() bool {
	_, err := s.Runner.Run("tmux", "has-session", "-t", s.Name)
	return err == nil
}

// Kill terminates the session. Killing a session that does not exist is
// not an error.
func (s *TmuxSession) Kill() error {
	if !s.Exists() {
		return nil
	}
	if _, err := s.Runner.Run("tmux", "kill-session", "-t", s.Name); err != nil {
		return fmt.Errorf("tmux kill-session: %w", err)
	}
	return nil
}

// execEnvCmd builds an exec-env command that replaces the window's shell
// with the agent process, with HERD_ROLE identifying the slot. exec removes
// the shell phase entirely so the agent IS the initial pane process.
func execEnvCmd(role string, argv []string) string {
	return fmt.Sprintf("exec env HERD_ROLE=%s %s", role, strings.Join(argv, " "))
}

// Create creates the herd tmux session: a manager window plus poolSize
// worker windows, each running the agent command with its role env var set.
// If the session already exists and is healthy, it is a no-op; a zombie
// session (agent crashed back to shell) is killed and recreated.
func (s *TmuxSession) Create(poolSize int, managerArgv, workerArgv []string) error {
	if s.Exists() {
		if s.isHealthy(poolSize) {
			return nil
		}
		_ = s.Kill()
	}

	if _, err := s.Runner.Run("tmux", "new-session", "-d", "-s", s.Name,
		"-n", channel.ManagerName, execEnvCmd(channel.ManagerName, managerArgv)); err != nil {
		return fmt.Errorf("tmux new-session: %w", err)
	}

	for id := 1; id <= poolSize; id++ {
		name := channel.WorkerName(id)
		if _, err := s.Runner.Run("tmux", "new-window", "-t", s.Name,
			"-n", name, execEnvCmd(name, workerArgv)); err != nil {
			return fmt.Errorf("tmux new-window %s: %w", name, err)
		}
	}

	for _, name := range append([]string{channel.ManagerName}, workerNames(poolSize)...) {
		if err := s.WaitForCommand(s.Name + ":" + name); err != nil {
			return err
		}
	}

	return nil
}

func workerNames(poolSize int) []string {
	out := make([]string, 0, poolSize)
	for id := 1; id <= poolSize; id++ {
		out = append(out, channel.WorkerName(id))
	}
	return out
}

// isHealthy checks whether the agent is running in every pane. Returns
// false if any pane shows a shell (the agent crashed back to it).
func (s *TmuxSession) isHealthy(poolSize int) bool {
	for _, name := range append([]string{channel.ManagerName}, workerNames(poolSize)...) {
		out, err := s.Runner.Run("tmux", "display-message", "-p", "-t", s.Name+":"+name, "#{pane_current_command}")
		if err != nil || isShell(strings.TrimSpace(out)) {
			return false
		}
	}
	return true
}

// isShell reports whether cmd is a known interactive shell.
func isShell(cmd string) bool {
	switch cmd {
	case "zsh", "bash", "sh", "fish":
		return true
	}
	return false
}

// WaitForCommand polls tmux pane_current_command until the foreground
// process is no longer a shell, indicating the agent has started. More
// reliable than scraping pane content for a prompt character.
func (s *TmuxSession) WaitForCommand(paneTarget string) error {
	timeout := s.ReadyTimeout
	if timeout == 0 {
		timeout = defaultReadyTimeout
	}
	deadline := time.Now().Add(timeout)
	var lastCmd string

	for {
		out, err := s.Runner.Run("tmux", "display-message", "-p", "-t", paneTarget, "#{pane_current_command}")
		if err == nil {
			lastCmd = strings.TrimSpace(out)
			if lastCmd != "" && !isShell(lastCmd) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("agent did not start in pane %s within %v (last command: %s)", paneTarget, timeout, lastCmd)
		}
		s.sleep(pollInterval)
	}
}

// sleep pauses for the given duration, using Sleeper if set.
func (s *TmuxSession) sleep(d time.Duration) {
	if s.Sleeper != nil {
		s.Sleeper(d)
		return
	}
	time.Sleep(d)
}
