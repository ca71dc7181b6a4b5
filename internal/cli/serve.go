package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/launchdeck/launchdeck/internal/api"
	"github.com/launchdeck/launchdeck/internal/cli/ui"
	"github.com/launchdeck/launchdeck/pkg/version"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workspace over HTTP and websocket",
	Long: `Start the HTTP API for the deployment workspace.

The API exposes the draft, scanning and classification, stored records
and the live session. When worker.url is configured the server keeps a
session open to the worker and relays its snapshots on /ws/session.

Examples:
  launchdeck serve                    # Start on localhost:8080
  launchdeck serve --port 3000        # Custom port
  launchdeck serve --host 0.0.0.0     # Listen on all interfaces`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to serve on (default from server.port)")
	serveCmd.Flags().StringVarP(&serveHost, "host", "H", "", "host to bind to (default from server.host)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host, port := cfg.Server.Host, cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Worker.URL != "" {
		s, err := a.connect(ctx)
		if err != nil {
			return err
		}
		go func() {
			if err := s.Run(ctx); err != nil {
				log.Error("worker session ended", "error", err)
			}
		}()
	} else {
		log.Warn("worker.url is not set; session endpoints will report unavailable")
	}

	server := api.NewServer(api.Config{
		Host:           host,
		Port:           port,
		Verbose:        IsVerbose(),
		Version:        version.Version,
		Token:          cfg.Server.Token,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         log,
	}, a.workspace)

	if !IsQuiet() {
		ui.Header("Launchdeck")
		ui.Info(fmt.Sprintf("Serving on http://%s:%d", host, port))
		ui.Divider()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info("server stopped")
	return nil
}
