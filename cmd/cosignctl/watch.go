package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/spf13/cobra"
)

func watchCmd(g *globals) *cobra.Command {
	var reconnect bool
	cmd := &cobra.Command{
		Use:   "watch ORG ADDRESS",
		Short: "Stream an organization's notifications until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			show := func(ev notify.Event) error {
				return render(g.out, g.output, ev)
			}
			if !reconnect {
				return c.Watch(ctx, args[0], args[1], show)
			}
			return c.WatchRetry(ctx, args[0], args[1], show, func(err error, next time.Duration) {
				fmt.Fprintf(cmd.ErrOrStderr(), "stream lost (%v); reconnecting in %s\n", err, next.Round(time.Millisecond))
			})
		},
	}
	cmd.Flags().BoolVar(&reconnect, "reconnect", true, "Reconnect with backoff when the stream drops")
	return cmd
}
