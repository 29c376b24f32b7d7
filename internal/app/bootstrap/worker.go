package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"pollstack/internal/platform/config"

	"github.com/robfig/cron/v3"
)

// WorkerApp runs the scheduled deadline sweep, the ledger audit and the
// winners notifier.
type WorkerApp struct {
	Container *Container
	scheduler *cron.Cron
	jobCtx    context.Context
	logger    *slog.Logger
}

func BuildWorker(cfg config.Config, logger *slog.Logger, opts Options) (*WorkerApp, error) {
	// Deadlines are owned by the sweep here; in-process timers belong to the API.
	cfg.EnableTimers = false
	container, err := Build(cfg, logger, opts)
	if err != nil {
		return nil, err
	}
	app := &WorkerApp{Container: container, jobCtx: context.Background(), logger: container.Logger}

	cronLogger := cronLogAdapter{logger: container.Logger}
	app.scheduler = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := app.scheduler.AddFunc(cfg.SweepSchedule, app.sweepJob); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("schedule sweep %q: %w", cfg.SweepSchedule, err)
	}
	if _, err := app.scheduler.AddFunc(cfg.AuditSchedule, app.auditJob); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("schedule audit %q: %w", cfg.AuditSchedule, err)
	}
	return app, nil
}

// Run sweeps once at startup, then follows the schedule until ctx ends.
func (w *WorkerApp) Run(ctx context.Context) error {
	notifierDone := w.Container.Notifier.Start(ctx)
	w.Sweep(ctx)

	w.jobCtx = ctx
	w.scheduler.Start()
	<-ctx.Done()
	<-w.scheduler.Stop().Done()
	<-notifierDone
	return nil
}

func (w *WorkerApp) Close() error {
	return w.Container.Close()
}

// Sweep closes expired entities and completes pending lotteries.
func (w *WorkerApp) Sweep(ctx context.Context) {
	report, err := w.Container.Surveys.Sweeper.DistributeAllPending(ctx)
	if err != nil {
		w.logger.Error("scheduled sweep failed",
			"event", "worker_sweep_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	w.logger.Info("scheduled sweep finished",
		"event", "worker_sweep_finished",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"closed", report.Closed,
		"distributed", report.Distributed,
		"failed", report.Failed,
	)
}

// Audit replays every subject's ledger and logs each drifted balance.
func (w *WorkerApp) Audit(ctx context.Context) {
	drifted, total, err := w.Container.Ledger.Audit.AuditAll(ctx)
	if err != nil {
		w.logger.Error("scheduled audit failed",
			"event", "worker_audit_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	for _, report := range drifted {
		w.logger.Error("ledger drift detected",
			"event", "worker_audit_drift",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"subject_id", report.SubjectID,
			"cached_balance", report.CachedBalance,
			"replayed_balance", report.ReplayedBalance,
			"violations", len(report.Violations),
		)
	}
	w.logger.Info("scheduled audit finished",
		"event", "worker_audit_finished",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"subjects", total,
		"drifted", len(drifted),
	)
}

func (w *WorkerApp) sweepJob() {
	w.Sweep(w.jobCtx)
}

func (w *WorkerApp) auditJob() {
	w.Audit(w.jobCtx)
}

type cronLogAdapter struct {
	logger *slog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, append([]any{"module", "internal/app/bootstrap", "layer", "platform"}, keysAndValues...)...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"module", "internal/app/bootstrap", "layer", "platform", "error", err.Error()}, keysAndValues...)
	a.logger.Error(msg, args...)
}
