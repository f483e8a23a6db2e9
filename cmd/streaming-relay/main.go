package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paxio/streaming-relay/internal/admin"
	"github.com/paxio/streaming-relay/internal/config"
	"github.com/paxio/streaming-relay/internal/httpserver"
	"github.com/paxio/streaming-relay/internal/metrics"
	"github.com/paxio/streaming-relay/internal/relay"
	"github.com/paxio/streaming-relay/internal/signaling"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "streaming-relay",
	Short: "WebSocket signaling relay for WebRTC streaming clients",
	Long: `streaming-relay is a standalone signaling server. Clients register a
display name over a WebSocket, join rooms for peer discovery, and exchange
opaque WebRTC offers, answers and ICE candidates through the relay. A JSON
management API and Prometheus-format counters are served on the same port.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(flagConfig)
	},
}

func main() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to a config file (yaml, toml or json)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting streaming-relay",
		"listen_addr", cfg.ListenAddr,
		"relay_path", cfg.RelayPath,
		"static_dir", cfg.StaticDir,
		"tls", cfg.TLSEnabled(),
		"probe_interval", cfg.ProbeInterval,
		"probe_timeout", cfg.ProbeTimeout,
		"offline_ttl", cfg.OfflineTTL,
		"max_message_bytes", cfg.MaxMessageBytes,
		"messages_per_second", cfg.MessagesPerSecond,
	)

	m := metrics.New()
	core := relay.NewCore(logger, m, nil)

	sig := signaling.NewServer(signaling.Config{
		Core:              core,
		Logger:            logger,
		Metrics:           m,
		ProbeInterval:     cfg.ProbeInterval,
		ProbeTimeout:      cfg.ProbeTimeout,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerSecond: cfg.MessagesPerSecond,
	})
	sig.Start()

	reaper := relay.NewReaper(core, cfg.ReapInterval, cfg.OfflineTTL, logger)
	reaper.Start()

	srv := httpserver.New(cfg, logger)
	srv.Mux().Handle("GET "+cfg.RelayPath, sig)
	srv.Mux().Handle("/api/", admin.New(core, logger, cfg.RelayPath))
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m))

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		sig.Close()
		reaper.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Ordered teardown: stop accepting new connections and drain in-flight
	// requests, then close live transports with a normal-closure frame, then
	// stop the background timers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	sig.Close()
	reaper.Close()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server exited after shutdown: %w", err)
	}
	return nil
}
