// Command chat-relay runs the development realtime server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nfrund/roomchat/internal/config"
	"github.com/nfrund/roomchat/internal/logging"
	"github.com/nfrund/roomchat/internal/relay"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)

	// Wait for interrupt signal to gracefully shut down the server.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := relay.NewHub(logger)
	go hub.Run(ctx)

	if err := relay.New(hub, logger).Start(ctx, cfg.RelayAddr); err != nil {
		logger.Error("Relay stopped", "error", err)
		os.Exit(1)
	}
}
