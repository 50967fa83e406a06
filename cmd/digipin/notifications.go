package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/digipin/internal/app"
	"github.com/fyrsmithlabs/digipin/internal/notify"
	"github.com/fyrsmithlabs/digipin/internal/storage"
)

func init() {
	rootCmd.AddCommand(notificationsCmd)
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Follow conversion notifications published over NATS",
	Long: `Print notifications as other digipin processes publish them.

Requires notify.nats to be enabled in the publishing processes. The
subscriber connects to storage.nats_url and listens on notify.nats_subject.

Examples:
  digipin notifications
  DIGIPIN_STORAGE_NATS_URL=nats://hub:4222 digipin notifications`,
	Args: cobra.NoArgs,
	RunE: runNotifications,
}

func runNotifications(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		nc := a.NATSConn()
		if nc == nil {
			var err error
			nc, err = storage.DialNATS(a.Config.Storage.NATSURL, a.Config.Storage.NATSToken.Value())
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		err := notify.Subscribe(ctx, nc, a.Config.Notify.NATSSubject, func(n notify.Notification) {
			fmt.Fprintf(out, "%s  %s: %s\n", n.Time.Local().Format(time.TimeOnly), n.Title, n.Message)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
