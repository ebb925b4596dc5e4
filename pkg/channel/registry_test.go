package channel //nolint:testpackage // white-box tests for the registry

import (
	"errors"
	"testing"
)

func TestResolve_Manager(t *testing.T) {
	r := New("herd", 3)

	ch, err := r.Resolve("manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Target != "herd:manager" {
		t.Fatalf("target: got %q, want %q", ch.Target, "herd:manager")
	}
}

func TestResolve_Workers(t *testing.T) {
	r := New("herd", 3)

	tests := []struct {
		name       string
		wantTarget string
	}{
		{"worker-1", "herd:worker-1"},
		{"worker-2", "herd:worker-2"},
		{"worker-3", "herd:worker-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := r.Resolve(tt.name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ch.Name != tt.name {
				t.Fatalf("name: got %q, want %q", ch.Name, tt.name)
			}
			if ch.Target != tt.wantTarget {
				t.Fatalf("target: got %q, want %q", ch.Target, tt.wantTarget)
			}
		})
	}
}

func TestResolve_UnknownNames(t *testing.T) {
	r := New("herd", 3)

	for _, name := range []string{"worker-4", "worker-0", "worker-", "architect", "", "worker-1x"} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(name)
			if err == nil {
				t.Fatalf("expected error for %q", name)
			}
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("expected NotFoundError, got %T", err)
			}
			if nf.Name != name {
				t.Fatalf("error name: got %q, want %q", nf.Name, name)
			}
		})
	}
}

func TestNames_OrderAndContents(t *testing.T) {
	r := New("herd", 2)

	got := r.Names()
	want := []string{"manager", "worker-1", "worker-2"}
	if len(got) != len(want) {
		t.Fatalf("names: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNames_SlotOrderPastTen(t *testing.T) {
	r := New("herd", 10)

	got := r.Names()
	if got[len(got)-1] != "worker-10" {
		t.Fatalf("last name: got %q, want %q", got[len(got)-1], "worker-10")
	}
	if got[2] != "worker-2" {
		t.Fatalf("names[2]: got %q, want %q", got[2], "worker-2")
	}
}
