package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"herd/pkg/eventlog"
	"herd/pkg/state"
)

// statusEventLimit is how many recent events the status footer shows.
const statusEventLimit = 5

// newStatusCmd creates the "herd status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the worker pool state",
		Long:  "Displays each worker slot's assignment and setup state, plus recent\ndispatcher events.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			workers, err := a.store.Snapshot()
			if err != nil {
				return err
			}

			busyStyle := lipgloss.NewStyle()
			freeStyle := lipgloss.NewStyle()
			if isStdoutTTY() {
				busyStyle = busyStyle.Foreground(lipgloss.Color("208"))
				freeStyle = freeStyle.Foreground(lipgloss.Color("46"))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s, %d workers\n\n", a.cfg.Session, a.cfg.PoolSize)
			for _, w := range workers {
				fmt.Fprintln(out, formatWorker(w, busyStyle, freeStyle))
			}

			reader, err := eventlog.NewReader(a.paths.EventsDBPath)
			if err != nil {
				// No events yet is a normal state for a fresh install.
				return nil
			}
			defer reader.Close()

			events, err := reader.Query(cmd.Context(), eventlog.QueryOpts{Limit: statusEventLimit})
			if err != nil || len(events) == 0 {
				return nil
			}
			fmt.Fprintln(out, "\nrecent events:")
			for _, ev := range events {
				fmt.Fprintf(out, "  %s %s", ev.CreatedAt.Format(time.RFC3339), ev.Type)
				if ev.Item != 0 {
					fmt.Fprintf(out, " item=%d", ev.Item)
				}
				if ev.Worker != 0 {
					fmt.Fprintf(out, " worker=%d", ev.Worker)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// formatWorker renders one pool slot line.
func formatWorker(w state.WorkerInfo, busyStyle, freeStyle lipgloss.Style) string {
	if w.Status == state.StatusBusy {
		line := fmt.Sprintf("worker-%d  %s  %s", w.ID, busyStyle.Render("busy"), w.Payload)
		if !w.SetupConfirmed {
			line += "  (setup unconfirmed)"
		}
		return line
	}
	return fmt.Sprintf("worker-%d  %s", w.ID, freeStyle.Render("free"))
}
