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

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Run the deadline sweep, the ledger audit and the winners notifier on schedule.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := bootstrap.NewLogger(cfg, "worker")

	app, err := bootstrap.BuildWorker(cfg, logger, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("worker shutdown close failed", "event", "worker_close_failed", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "event", "worker_stopped", "error", err.Error())
		os.Exit(1)
	}
}
