package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pollstack/internal/app/bootstrap"
	"pollstack/internal/platform/config"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (stores + coordinator + modules).
// 3) Serve HTTP until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := bootstrap.NewLogger(cfg, "api")

	app, err := bootstrap.BuildAPI(cfg, logger, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("api shutdown close failed", "event", "api_close_failed", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx); err != nil {
		logger.Error("api stopped with error", "event", "api_stopped", "error", err.Error())
		os.Exit(1)
	}
}
