package main

import (
	"fmt"

	"herd/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root herd command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "herd",
		Short:         "Herd worker-pool orchestrator",
		Long:          "herd manages a tmux-hosted pool of agent workers:\na manager window plus numbered worker windows, each working one tracked item\nin its own git worktree.",
		Version:       fmt.Sprintf("herd %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newSetupCmd(),
		newSendCmd(),
		newAssignCmd(),
		newDoneCmd(),
		newDispatchCmd(),
		newCleanupCmd(),
		newStatusCmd(),
		newDashCmd(),
	)

	return cmd
}
