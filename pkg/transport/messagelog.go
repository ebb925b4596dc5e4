package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MessageLog is an append-only record of every send attempt. One line per
// attempt, in the form:
//
//	[2026-01-02T15:04:05Z] worker-1: SENT - "message text"
//
// Failed attempts are recorded with FAILED in place of SENT so that
// attempted-and-failed deliveries stay distinguishable from successes.
type MessageLog struct {
	path    string
	nowFunc func() time.Time

	mu sync.Mutex
}

// NewMessageLog creates a MessageLog writing to path. The file and its
// parent directory are created on first append.
func NewMessageLog(path string) *MessageLog {
	return &MessageLog{path: path, nowFunc: time.Now}
}

// Append records one send attempt.
func (l *MessageLog) Append(target, msg string, delivered bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create message log dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer func() { _ = f.Close() }()

	outcome := "SENT"
	if !delivered {
		outcome = "FAILED"
	}
	line := fmt.Sprintf("[%s] %s: %s - %q\n",
		l.nowFunc().UTC().Format(time.RFC3339), target, outcome, msg)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append message log: %w", err)
	}
	return nil
}
