package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"herd/pkg/config"
)

// newSetupCmd creates the "herd setup" subcommand.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup [worker-count]",
		Short: "Create the tmux session and worker pool",
		Long: fmt.Sprintf(`Creates the herd tmux session: a manager window plus one window per worker
slot, each running the configured agent command. worker-count defaults to %d
and must be between %d and %d. Re-running against a healthy session is a
no-op; a session whose agents have crashed is recreated.`,
			config.DefaultPoolSize, config.MinPoolSize, config.MaxPoolSize),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			poolSize := a.cfg.PoolSize
			if len(args) == 1 {
				poolSize, err = strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("worker-count %q is not a number", args[0])
				}
			}
			if poolSize < config.MinPoolSize || poolSize > config.MaxPoolSize {
				return &config.PoolSizeError{Size: poolSize}
			}

			session := NewTmuxSession(a.cfg.Session)
			if err := session.Create(poolSize,
				a.cfg.AgentArgv(a.cfg.ManagerArgs),
				a.cfg.AgentArgv(a.cfg.WorkerArgs)); err != nil {
				return err
			}

			_ = a.events.Log(cmd.Context(), "setup", "cli", 0, 0, "", strconv.Itoa(poolSize))
			fmt.Fprintf(cmd.OutOrStdout(), "session %s ready: manager + %d workers\n", a.cfg.Session, poolSize)
			return nil
		},
	}
}
