// Package config loads project configuration from .herd/config.yaml and the
// environment. The resulting Config is threaded explicitly through
// constructors; no component reads ambient process state for things like the
// pool size.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pool size bounds. The pool is deliberately small: each worker is a full
// interactive agent session.
const (
	DefaultPoolSize = 3
	MinPoolSize     = 1
	MaxPoolSize     = 10
)

// Env var names for optional extra agent startup arguments. An empty value
// is valid and means "no extra arguments".
const (
	EnvManagerArgs = "HERD_MANAGER_ARGS"
	EnvWorkerArgs  = "HERD_WORKER_ARGS"
)

// Config holds all herd settings.
type Config struct {
	PoolSize      int    `yaml:"pool_size"`
	Session       string `yaml:"session"`
	Trunk         string `yaml:"trunk"`
	AgentCmd      string `yaml:"agent_cmd"`
	RepoRoot      string `yaml:"repo_root"`
	WorkspaceRoot string `yaml:"workspace_root"`
	SetupCmd      string `yaml:"setup_cmd"` // overrides bring-up detection

	// ManagerArgs and WorkerArgs are extra startup arguments for the
	// manager and worker agent commands, from the environment.
	ManagerArgs string `yaml:"-"`
	WorkerArgs  string `yaml:"-"`
}

// PoolSizeError reports an out-of-range pool size.
type PoolSizeError struct {
	Size int
}

func (e *PoolSizeError) Error() string {
	return fmt.Sprintf("pool size %d out of range [%d, %d]", e.Size, MinPoolSize, MaxPoolSize)
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	out := c
	if out.PoolSize == 0 {
		out.PoolSize = DefaultPoolSize
	}
	if out.Session == "" {
		out.Session = "herd"
	}
	if out.Trunk == "" {
		out.Trunk = "main"
	}
	if out.AgentCmd == "" {
		out.AgentCmd = "claude"
	}
	if out.RepoRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			out.RepoRoot = wd
		}
	}
	if out.WorkspaceRoot == "" {
		out.WorkspaceRoot = filepath.Join(out.RepoRoot, ".workspaces")
	}
	return out
}

// Validate checks range constraints.
func (c Config) Validate() error {
	if c.PoolSize < MinPoolSize || c.PoolSize > MaxPoolSize {
		return &PoolSizeError{Size: c.PoolSize}
	}
	return nil
}

// Load reads .herd/config.yaml under root (missing file is fine), applies
// defaults and env overrides, and validates.
func Load(root string) (Config, error) {
	var cfg Config

	path := filepath.Join(root, ".herd", "config.yaml")
	data, err := os.ReadFile(path) //nolint:gosec // path built from configured root
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if cfg.RepoRoot == "" {
		cfg.RepoRoot = root
	}
	cfg = cfg.withDefaults()
	cfg.ManagerArgs = os.Getenv(EnvManagerArgs)
	cfg.WorkerArgs = os.Getenv(EnvWorkerArgs)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AgentArgv builds the agent launch argv for a role: the configured agent
// command plus the role's extra args from the environment.
func (c Config) AgentArgv(extraArgs string) []string {
	argv := strings.Fields(c.AgentCmd)
	argv = append(argv, strings.Fields(extraArgs)...)
	return argv
}
