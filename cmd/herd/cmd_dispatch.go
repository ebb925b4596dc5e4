package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"herd/pkg/dispatcher"
)

// newDispatchCmd creates the "herd dispatch" subcommand.
func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run the dispatch loop",
		Long: `Watches the worker pool and assigns eligible issues to free workers as
slots open up. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "dispatching for session %s (%d workers); ctrl-c to stop\n",
				a.cfg.Session, a.cfg.PoolSize)

			a.dispatcher().Run(ctx, dispatcher.LoopConfig{MarkerDir: a.paths.MarkerDir})
			return nil
		},
	}
}
