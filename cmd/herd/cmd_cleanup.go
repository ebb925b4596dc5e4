package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"herd/pkg/reaper"
)

// newCleanupCmd creates the "herd cleanup" subcommand.
func newCleanupCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove worktrees for finished issues",
		Long: `Reconciles on-disk worktrees against the tracker: worktrees whose issue is
closed are removed, everything else is kept. Worktrees the tracker cannot
account for (deleted issues, lookup failures) are always kept. Safe to run
from cron; with --dry-run nothing is mutated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r := &reaper.Reaper{
				Workspaces: a.wsm,
				Tracker:    a.tracker,
				Events:     a.events,
				Out:        cmd.OutOrStdout(),
			}

			report, err := r.Reap(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d, %s %d, kept %d open, kept %d unaccounted\n",
				report.Checked, verb, len(report.Removed), len(report.KeptOpen), len(report.KeptUnknown))
			for _, e := range report.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without removing anything")
	return cmd
}
