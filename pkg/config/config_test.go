package config //nolint:testpackage // white-box tests for config loading

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvManagerArgs, "")
	t.Setenv(EnvWorkerArgs, "")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PoolSize != 3 {
		t.Fatalf("pool size: got %d, want 3", cfg.PoolSize)
	}
	if cfg.Session != "herd" || cfg.Trunk != "main" || cfg.AgentCmd != "claude" {
		t.Fatalf("defaults: got %+v", cfg)
	}
	if cfg.RepoRoot != root {
		t.Fatalf("repo root: got %q, want %q", cfg.RepoRoot, root)
	}
	if cfg.WorkspaceRoot != filepath.Join(root, ".workspaces") {
		t.Fatalf("workspace root: got %q", cfg.WorkspaceRoot)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".herd"), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := "pool_size: 5\nsession: flock\ntrunk: master\nsetup_cmd: make deps\n"
	if err := os.WriteFile(filepath.Join(root, ".herd", "config.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PoolSize != 5 || cfg.Session != "flock" || cfg.Trunk != "master" {
		t.Fatalf("config: got %+v", cfg)
	}
	if cfg.SetupCmd != "make deps" {
		t.Fatalf("setup cmd: got %q", cfg.SetupCmd)
	}
}

func TestLoad_EnvArgs(t *testing.T) {
	t.Setenv(EnvManagerArgs, "--dangerously-skip-permissions")
	t.Setenv(EnvWorkerArgs, "")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ManagerArgs != "--dangerously-skip-permissions" {
		t.Fatalf("manager args: got %q", cfg.ManagerArgs)
	}
	// Empty is a valid value meaning no extra arguments.
	if cfg.WorkerArgs != "" {
		t.Fatalf("worker args: got %q, want empty", cfg.WorkerArgs)
	}
}

func TestLoad_PoolSizeOutOfRange(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".herd"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".herd", "config.yaml"), []byte("pool_size: 11\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(root)
	var poolErr *PoolSizeError
	if !errors.As(err, &poolErr) {
		t.Fatalf("expected PoolSizeError, got %v", err)
	}
	if poolErr.Size != 11 {
		t.Fatalf("size: got %d, want 11", poolErr.Size)
	}
}

func TestAgentArgv(t *testing.T) {
	cfg := Config{AgentCmd: "claude"}

	got := cfg.AgentArgv("--model opus")
	want := []string{"claude", "--model", "opus"}
	if len(got) != len(want) {
		t.Fatalf("argv: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argv[%d]: got %q, want %q", i, got[i], want[i])
		}
	}

	if got := cfg.AgentArgv(""); len(got) != 1 || got[0] != "claude" {
		t.Fatalf("argv with empty extra: got %v", got)
	}
}
