package state //nolint:testpackage // white-box tests for the marker store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, poolSize int) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "status"), poolSize)
}

func TestFindFree_LowestIDWins(t *testing.T) {
	s := newTestStore(t, 3)
	if err := s.MarkBusy(1, 42, "Fix bug"); err != nil {
		t.Fatalf("MarkBusy: %v", err)
	}

	id, err := s.FindFree()
	if err != nil {
		t.Fatalf("FindFree: %v", err)
	}
	if id != 2 {
		t.Fatalf("FindFree: got %d, want 2", id)
	}
}

func TestFindFree_AllBusy(t *testing.T) {
	s := newTestStore(t, 2)
	for id := 1; id <= 2; id++ {
		if err := s.MarkBusy(id, id*10, "work"); err != nil {
			t.Fatalf("MarkBusy(%d): %v", id, err)
		}
	}

	id, err := s.FindFree()
	if err != nil {
		t.Fatalf("FindFree: %v", err)
	}
	if id != 0 {
		t.Fatalf("FindFree: got %d, want 0 (none free)", id)
	}
}

func TestMarkBusy_PayloadFormat(t *testing.T) {
	s := newTestStore(t, 3)
	if err := s.MarkBusy(1, 42, "Fix bug"); err != nil {
		t.Fatalf("MarkBusy: %v", err)
	}

	itemID, payload, ok := s.Busy(1)
	if !ok {
		t.Fatal("expected worker 1 busy")
	}
	if payload != "Issue #42: Fix bug" {
		t.Fatalf("payload: got %q, want %q", payload, "Issue #42: Fix bug")
	}
	if itemID != 42 {
		t.Fatalf("item id: got %d, want 42", itemID)
	}
}

func TestMarkBusy_DuplicateIsAlreadyBusyError(t *testing.T) {
	s := newTestStore(t, 3)
	if err := s.MarkBusy(1, 42, "Fix bug"); err != nil {
		t.Fatalf("MarkBusy: %v", err)
	}

	err := s.MarkBusy(1, 43, "Other work")
	var busy *AlreadyBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected AlreadyBusyError, got %v", err)
	}
	if busy.WorkerID != 1 {
		t.Fatalf("worker id: got %d, want 1", busy.WorkerID)
	}
	if busy.Payload != "Issue #42: Fix bug" {
		t.Fatalf("payload: got %q", busy.Payload)
	}

	// First writer's marker is untouched.
	itemID, _, ok := s.Busy(1)
	if !ok || itemID != 42 {
		t.Fatalf("busy marker: got (%d, %v), want (42, true)", itemID, ok)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	s := newTestStore(t, 3)
	if err := s.MarkBusy(2, 7, "Thing"); err != nil {
		t.Fatalf("MarkBusy: %v", err)
	}
	if err := s.MarkSetupConfirmed(2); err != nil {
		t.Fatalf("MarkSetupConfirmed: %v", err)
	}

	if err := s.Release(2); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, _, ok := s.Busy(2); ok {
		t.Fatal("worker 2 should be free after release")
	}

	// Second release is a no-op.
	if err := s.Release(2); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	// Releasing a never-assigned slot is fine too.
	if err := s.Release(3); err != nil {
		t.Fatalf("Release of free slot: %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestStore(t, 3)
	if err := s.MarkBusy(2, 11, "Add docs"); err != nil {
		t.Fatalf("MarkBusy: %v", err)
	}
	if err := s.MarkSetupConfirmed(2); err != nil {
		t.Fatalf("MarkSetupConfirmed: %v", err)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(snap))
	}

	if snap[0].Status != StatusFree || snap[0].SetupConfirmed {
		t.Fatalf("worker 1: got %+v, want free/unconfirmed", snap[0])
	}
	w2 := snap[1]
	if w2.Status != StatusBusy || w2.ItemID != 11 || !w2.SetupConfirmed {
		t.Fatalf("worker 2: got %+v", w2)
	}
	if w2.Payload != "Issue #11: Add docs" {
		t.Fatalf("worker 2 payload: got %q", w2.Payload)
	}
	if snap[2].Status != StatusFree {
		t.Fatalf("worker 3: got %+v, want free", snap[2])
	}
}

func TestAtMostOneBusyMarkerPerWorker(t *testing.T) {
	s := newTestStore(t, 2)
	if err := s.MarkBusy(1, 1, "a"); err != nil {
		t.Fatalf("MarkBusy: %v", err)
	}
	_ = s.MarkBusy(1, 2, "b") // rejected

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("read marker dir: %v", err)
	}
	var busyFiles int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".busy" {
			busyFiles++
		}
	}
	if busyFiles != 1 {
		t.Fatalf("expected exactly 1 busy marker, found %d", busyFiles)
	}
}

func TestParsePayload_Malformed(t *testing.T) {
	for _, payload := range []string{"", "garbage", "Issue #x: nope", "#42: no prefix"} {
		if got := parsePayload(payload); got != 0 {
			t.Fatalf("parsePayload(%q): got %d, want 0", payload, got)
		}
	}
}
