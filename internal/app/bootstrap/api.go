package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pollstack/internal/platform/config"
	"pollstack/internal/platform/httpserver"
)

const shutdownGrace = 15 * time.Second

// APIApp serves the HTTP surface and runs the winners notifier.
type APIApp struct {
	Container *Container
	Server    *httpserver.Server
	logger    *slog.Logger
}

func BuildAPI(cfg config.Config, logger *slog.Logger, opts Options) (*APIApp, error) {
	container, err := Build(cfg, logger, opts)
	if err != nil {
		return nil, err
	}
	server := httpserver.New(httpserver.Modules{
		Ledger:   container.Ledger,
		Lottery:  container.Lottery,
		Surveys:  container.Surveys,
		Exchange: container.Exchange,
		Ready:    container.Ping,
	}, container.Metrics.Handler(), container.Logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{Container: container, Server: server, logger: container.Logger}, nil
}

// Run blocks until ctx is cancelled or the listener fails.
func (a *APIApp) Run(ctx context.Context) error {
	notifyCtx, stopNotifier := context.WithCancel(ctx)
	notifierDone := a.Container.Notifier.Start(notifyCtx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown failed",
			"event", "api_shutdown_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
		runErr = errors.Join(runErr, err)
	}
	stopNotifier()
	<-notifierDone
	return runErr
}

func (a *APIApp) Close() error {
	return a.Container.Close()
}
