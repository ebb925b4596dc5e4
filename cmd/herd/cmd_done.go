package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// newDoneCmd creates the "herd done" subcommand.
func newDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <worker-id>",
		Short: "Release a worker that finished its item",
		Long: `Reports a worker's item as finished: forwards the pull request status to
the worker's window, releases the slot, removes the worktree, and resets the
window input. Slot reclamation proceeds even when the tracker is
unreachable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("worker id %q is not a number", args[0])
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if workerID < 1 || workerID > a.cfg.PoolSize {
				return fmt.Errorf("worker id %d out of range [1, %d]", workerID, a.cfg.PoolSize)
			}

			if err := a.dispatcher().Complete(cmd.Context(), workerID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "worker-%d released\n", workerID)
			return nil
		},
	}
}
