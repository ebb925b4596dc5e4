// Package state tracks per-slot worker state through marker files. File
// presence is the durable contract: a worker is busy iff its busy marker
// exists, and setup is confirmed iff its setup-ok marker exists. Markers
// survive dispatcher restarts; contents are human-readable payloads.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Status is a worker slot's assignment status.
type Status string

// Worker status constants.
const (
	StatusFree Status = "free"
	StatusBusy Status = "busy"
)

// AlreadyBusyError is returned when MarkBusy finds an existing busy marker.
// Under concurrent dispatchers the marker write is the synchronization
// point: first writer wins, and the loser treats this as no capacity.
type AlreadyBusyError struct {
	WorkerID int
	Payload  string
}

func (e *AlreadyBusyError) Error() string {
	return fmt.Sprintf("worker %d already busy (%s)", e.WorkerID, e.Payload)
}

// WorkerInfo is one row of a pool snapshot.
type WorkerInfo struct {
	ID             int
	Status         Status
	ItemID         int
	Payload        string
	SetupConfirmed bool
}

// Store reads and writes worker markers for a fixed pool of slots 1..N.
type Store struct {
	dir      string
	poolSize int

	mu sync.Mutex
}

// NewStore creates a Store over the marker directory for poolSize slots.
// The pool size is explicit configuration; nothing here reads ambient
// process state.
func NewStore(dir string, poolSize int) *Store {
	return &Store{dir: dir, poolSize: poolSize}
}

// PoolSize returns the configured number of worker slots.
func (s *Store) PoolSize() int { return s.poolSize }

func (s *Store) busyPath(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("worker-%d.busy", id))
}

func (s *Store) setupPath(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("worker-%d.setup-ok", id))
}

// BusyPayload formats the busy marker payload for an item.
func BusyPayload(itemID int, title string) string {
	return fmt.Sprintf("Issue #%d: %s", itemID, title)
}

// parsePayload extracts the item id from a busy payload. Returns 0 for
// payloads that don't follow the convention.
func parsePayload(payload string) int {
	rest, ok := strings.CutPrefix(payload, "Issue #")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(rest, ":")
	var id int
	if _, err := fmt.Sscanf(num, "%d", &id); err != nil {
		return 0
	}
	return id
}

// FindFree scans slots 1..N in ascending order and returns the first with
// no busy marker. The lowest id wins so assignment order is deterministic.
// Returns 0 when every slot is busy.
func (s *Store) FindFree() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := 1; id <= s.poolSize; id++ {
		_, err := os.Stat(s.busyPath(id))
		if errors.Is(err, os.ErrNotExist) {
			return id, nil
		}
		if err != nil {
			return 0, fmt.Errorf("stat busy marker for worker %d: %w", id, err)
		}
	}
	return 0, nil
}

// MarkBusy writes the busy marker for workerID with the item payload. An
// existing marker is an AlreadyBusyError; O_EXCL makes the write itself the
// exclusion point.
func (s *Store) MarkBusy(workerID, itemID int, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}

	payload := BusyPayload(itemID, title)
	f, err := os.OpenFile(s.busyPath(workerID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			existing, _ := os.ReadFile(s.busyPath(workerID))
			return &AlreadyBusyError{WorkerID: workerID, Payload: strings.TrimSpace(string(existing))}
		}
		return fmt.Errorf("write busy marker for worker %d: %w", workerID, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(payload + "\n"); err != nil {
		return fmt.Errorf("write busy marker for worker %d: %w", workerID, err)
	}
	return nil
}

// MarkSetupConfirmed writes the setup-ok marker. Only meaningful after
// MarkBusy.
func (s *Store) MarkSetupConfirmed(workerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	if err := os.WriteFile(s.setupPath(workerID), []byte("ok\n"), 0o644); err != nil {
		return fmt.Errorf("write setup marker for worker %d: %w", workerID, err)
	}
	return nil
}

// Release deletes both markers for workerID. Idempotent: missing markers
// are not errors.
func (s *Store) Release(workerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.busyPath(workerID), s.setupPath(workerID)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove marker %s: %w", path, err)
		}
	}
	return nil
}

// Busy returns the item id and payload for a busy worker, or ok=false when
// the slot is free.
func (s *Store) Busy(workerID int) (itemID int, payload string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.busyPath(workerID))
	if err != nil {
		return 0, "", false
	}
	p := strings.TrimSpace(string(data))
	return parsePayload(p), p, true
}

// Snapshot enumerates all slots for load reporting.
func (s *Store) Snapshot() ([]WorkerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]WorkerInfo, 0, s.poolSize)
	for id := 1; id <= s.poolSize; id++ {
		info := WorkerInfo{ID: id, Status: StatusFree}

		data, err := os.ReadFile(s.busyPath(id))
		if err == nil {
			info.Status = StatusBusy
			info.Payload = strings.TrimSpace(string(data))
			info.ItemID = parsePayload(info.Payload)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read busy marker for worker %d: %w", id, err)
		}

		if _, err := os.Stat(s.setupPath(id)); err == nil {
			info.SetupConfirmed = true
		}
		out = append(out, info)
	}
	return out, nil
}
