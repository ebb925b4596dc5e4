// Package envprobe detects the environment bring-up procedure for a
// workspace. The dispatcher runs the detected command inside a freshly
// provisioned workspace before notifying a worker; a config override always
// wins over detection.
package envprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// SetupCmd is a shell-less bring-up command run inside a workspace.
type SetupCmd struct {
	Name string   // display name (e.g. "go")
	Args []string // argv, program first
}

// String renders the command for logs and error messages.
func (c SetupCmd) String() string {
	return strings.Join(c.Args, " ")
}

// SetupError is a workspace bring-up failure. It carries the command output
// so terminal failure messages stay actionable.
type SetupError struct {
	Cmd    SetupCmd
	Output string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %q failed: %v: %s", e.Cmd.String(), e.Err, strings.TrimSpace(e.Output))
}

func (e *SetupError) Unwrap() error { return e.Err }

// Detect returns the bring-up command for the project at root. Priority:
// explicit override > go.mod > package.json > pyproject.toml. Projects with
// none of these get a nil command (nothing to bring up).
func Detect(root, override string) *SetupCmd {
	if override != "" {
		fields := strings.Fields(override)
		return &SetupCmd{Name: fields[0], Args: fields}
	}

	if fileExists(filepath.Join(root, "go.mod")) {
		return &SetupCmd{Name: "go", Args: []string{"go", "build", "./..."}}
	}
	if cmd := detectJS(root); cmd != nil {
		return cmd
	}
	if cmd := detectPython(root); cmd != nil {
		return cmd
	}
	return nil
}

// detectJS picks the JS package manager from package.json and lockfiles.
func detectJS(root string) *SetupCmd {
	data, err := os.ReadFile(filepath.Join(root, "package.json")) //nolint:gosec // path built from configured root
	if err != nil {
		return nil
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}

	if fileExists(filepath.Join(root, "pnpm-lock.yaml")) {
		return &SetupCmd{Name: "pnpm", Args: []string{"pnpm", "install", "--frozen-lockfile"}}
	}
	return &SetupCmd{Name: "npm", Args: []string{"npm", "install"}}
}

// detectPython reads pyproject.toml; a [tool.uv] table or uv.lock selects
// uv, anything else falls back to pip.
func detectPython(root string) *SetupCmd {
	data, err := os.ReadFile(filepath.Join(root, "pyproject.toml")) //nolint:gosec // path built from configured root
	if err != nil {
		return nil
	}
	var pyproject map[string]interface{}
	if err := toml.Unmarshal(data, &pyproject); err != nil {
		return nil
	}

	if fileExists(filepath.Join(root, "uv.lock")) {
		return &SetupCmd{Name: "uv", Args: []string{"uv", "sync"}}
	}
	if tool, ok := pyproject["tool"].(map[string]interface{}); ok {
		if _, hasUV := tool["uv"]; hasUV {
			return &SetupCmd{Name: "uv", Args: []string{"uv", "sync"}}
		}
	}
	return &SetupCmd{Name: "pip", Args: []string{"pip", "install", "-e", "."}}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Runner executes a bring-up command inside a workspace directory.
type Runner struct {
	// ExecFn runs argv in dir and returns combined output; injectable for
	// testing. Nil uses os/exec.
	ExecFn func(ctx context.Context, dir string, args []string) ([]byte, error)
}

// Run executes cmd in dir. A nil cmd is a no-op success.
func (r *Runner) Run(ctx context.Context, dir string, cmd *SetupCmd) error {
	if cmd == nil {
		return nil
	}

	execFn := r.ExecFn
	if execFn == nil {
		execFn = func(ctx context.Context, dir string, args []string) ([]byte, error) {
			c := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // argv comes from detection, not user input
			c.Dir = dir
			return c.CombinedOutput()
		}
	}

	out, err := execFn(ctx, dir, cmd.Args)
	if err != nil {
		return &SetupError{Cmd: *cmd, Output: string(out), Err: err}
	}
	return nil
}
