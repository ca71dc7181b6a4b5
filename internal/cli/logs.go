package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/launchdeck/launchdeck/internal/app/session"
)

var logsCmd = &cobra.Command{
	Use:   "logs <service>",
	Short: "Stream the runtime logs of a deployed service",
	Long: `Subscribe to the live logs of a deployed service and print them as
they arrive. Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	go func() {
		if err := s.Run(ctx); err != nil {
			log.Warn("session ended", "error", err)
		}
	}()

	updates := s.Subscribe()
	defer s.Unsubscribe(updates)
	if err := a.workspace.SubscribeLogs(ctx, args[0]); err != nil {
		return err
	}
	return followLogs(ctx, cmd.OutOrStdout(), updates)
}

// followLogs prints live log lines not printed before, until ctx is done or
// the connection goes away.
func followLogs(ctx context.Context, w io.Writer, updates <-chan session.Snapshot) error {
	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if len(snap.LiveLogs) < printed {
				printed = 0
			}
			for _, line := range snap.LiveLogs[printed:] {
				fmt.Fprintln(w, line)
			}
			printed = len(snap.LiveLogs)
			if snap.Connectivity != session.ConnectivityOpen {
				return fmt.Errorf("connection %s", snap.Connectivity)
			}
		}
	}
}
