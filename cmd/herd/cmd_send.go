package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"herd/pkg/channel"
	"herd/pkg/transport"
)

// newSendCmd creates the "herd send" subcommand.
func newSendCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "send <target> <message>...",
		Short: "Send a message to the manager or a worker",
		Long: `Delivers a message into the target window's agent input: clears any
half-typed input, pastes the message, and commits it. Every delivery attempt
is appended to the message log. Targets are "manager" or "worker-N".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if list {
				for _, name := range a.registry.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			if len(args) < 2 {
				return errors.New("usage: herd send <target> <message>")
			}

			ch, err := a.registry.Resolve(args[0])
			if err != nil {
				var nf *channel.NotFoundError
				if errors.As(err, &nf) {
					return fmt.Errorf("%w (available: %s)", err, strings.Join(a.registry.Names(), ", "))
				}
				return err
			}

			msg := strings.Join(args[1:], " ")
			if err := a.tp.Send(cmd.Context(), ch, msg); err != nil {
				var unavail *transport.TargetUnavailableError
				if errors.As(err, &unavail) {
					return fmt.Errorf("%w (is the session running? try: herd setup)", err)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", ch.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list available targets and exit")
	return cmd
}
