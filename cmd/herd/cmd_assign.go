package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"herd/pkg/dispatcher"
	"herd/pkg/tracker"
)

// newAssignCmd creates the "herd assign" subcommand.
func newAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <issue-number>",
		Short: "Assign one issue to a free worker",
		Long: `Runs the full assignment protocol for a single issue: claims it on the
tracker, provisions an isolated worktree, brings the environment up, briefs
the worker, and waits for acknowledgement. Any failure rolls the whole
attempt back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("issue number %q is not a number", args[0])
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			issue, err := a.tracker.State(cmd.Context(), number)
			if err != nil {
				return err
			}
			switch issue.State {
			case tracker.StateNotFound:
				return fmt.Errorf("issue #%d not found", number)
			case tracker.StateClosed:
				return fmt.Errorf("issue #%d is closed", number)
			}

			workerID, err := a.dispatcher().Assign(cmd.Context(), issue)
			if err != nil {
				if errors.Is(err, dispatcher.ErrNoCapacity) {
					return fmt.Errorf("all %d workers are busy", a.cfg.PoolSize)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "issue #%d assigned to worker-%d\n", number, workerID)
			return nil
		},
	}
}
