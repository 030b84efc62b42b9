package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/config"
	"github.com/brianly1003/workbench/internal/pairing"
	"github.com/brianly1003/workbench/internal/server/httpapi"
)

var (
	serveHost        string
	servePort        int
	serveExternalURL string
	serveNoQR        bool
)

// serveCmd starts the read-only board server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board over HTTP and WebSocket",
	Long: `Serve a read-only view of the board for browsers and phones.

The server exposes the board, sessions, and orphan report over HTTP,
and pushes live updates over a WebSocket at /ws. On startup it prints
a QR code that opens the board when scanned.

Example:
  wb serve
  wb serve --port 9000
  wb serve --host 0.0.0.0          # allow connections from other devices

Port forwarding:
  When using VS Code port forwarding or a tunnel, pass the forwarded URL:

  wb serve --external-url https://your-tunnel.devtunnels.ms

  The QR code and pairing payload will advertise that URL instead of
  the local address.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (default: 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port for HTTP and WebSocket (default: 8787)")
	serveCmd.Flags().StringVar(&serveExternalURL, "external-url", "", "external URL for tunnels (e.g., https://tunnel.devtunnels.ms)")
	serveCmd.Flags().BoolVar(&serveNoQR, "no-qr", false, "skip the QR code on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveNoQR {
		cfg.Server.ShowQR = false
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting board server")

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := application.Stop(); err != nil {
			log.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	qr := pairing.NewQRGenerator(cfg.Server.Host, cfg.Server.Port, application.Project().Name)
	if serveExternalURL != "" {
		qr.SetExternalURL(serveExternalURL)
	}

	server := httpapi.NewServer(
		cfg.Server.Host,
		cfg.Server.Port,
		application.Engine(),
		application.Projection(),
		application.Store(),
		application.Hub(),
		qr,
		serveLogger(cfg),
	)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	fmt.Printf("Serving %s on http://%s\n", application.Project().Name, server.Addr())
	if cfg.Server.ShowQR {
		qr.PrintToTerminal()
	}
	fmt.Println("Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	if err := server.Stop(); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("board server stopped")
	return nil
}

// serveLogger builds the slog logger the HTTP layer uses.
func serveLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))
}
