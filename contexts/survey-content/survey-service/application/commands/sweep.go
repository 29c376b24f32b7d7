package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	"pollstack/contexts/survey-content/survey-service/ports"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepBatch       = 200
	defaultSweepParallelism = 4
)

type SweepReport struct {
	Closed      int
	Distributed int
	Failed      int
}

// SweepUseCase is the primary deadline mechanism: it closes every open
// entity past its deadline and completes every PENDING lottery that can no
// longer gain participants. It is safe to run from several instances at once.
type SweepUseCase struct {
	Reader      ports.Reader
	Closer      CloseUseCase
	Distributor ports.Distributor
	Clock       ports.Clock
	Metrics     ports.Metrics
	Parallelism int
	BatchSize   int
	Logger      *slog.Logger
}

type sweepTask struct {
	entity entities.Entity
	close  bool
}

func (uc SweepUseCase) DistributeAllPending(ctx context.Context) (SweepReport, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.Clock.Now().UTC()

	tasks, err := uc.collect(ctx, now)
	if err != nil {
		uc.record("list_failed")
		logger.Error("deadline sweep listing failed",
			"event", "survey_sweep_list_failed",
			"module", "survey-content/survey-service",
			"layer", "application",
			"error", err.Error(),
		)
		return SweepReport{}, err
	}

	parallelism := uc.Parallelism
	if parallelism <= 0 {
		parallelism = defaultSweepParallelism
	}

	var (
		mu     sync.Mutex
		report SweepReport
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for _, task := range tasks {
		group.Go(func() error {
			closed, distributed, err := uc.run(groupCtx, task)
			mu.Lock()
			defer mu.Unlock()
			if closed {
				report.Closed++
			}
			if distributed {
				report.Distributed++
			}
			if err != nil {
				report.Failed++
				logger.Error("deadline sweep item failed",
					"event", "survey_sweep_item_failed",
					"module", "survey-content/survey-service",
					"layer", "application",
					"entity_id", task.entity.EntityID,
					"kind", string(task.entity.Kind),
					"error", err.Error(),
				)
			}
			return nil
		})
	}
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		uc.record("cancelled")
		return report, err
	}

	outcome := "ok"
	if report.Failed > 0 {
		outcome = "partial"
	}
	uc.record(outcome)
	logger.Info("deadline sweep finished",
		"event", "survey_sweep_finished",
		"module", "survey-content/survey-service",
		"layer", "application",
		"closed", report.Closed,
		"distributed", report.Distributed,
		"failed", report.Failed,
	)
	return report, nil
}

func (uc SweepUseCase) collect(ctx context.Context, now time.Time) ([]sweepTask, error) {
	batch := uc.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	seen := make(map[string]struct{})
	var tasks []sweepTask
	for _, kind := range []entities.Kind{entities.KindResearch, entities.KindVote} {
		due, err := uc.Reader.ListDueForClosure(ctx, kind, now, batch)
		if err != nil {
			return nil, fmt.Errorf("list due %s: %w", kind, err)
		}
		for _, entity := range due {
			seen[entity.Key()] = struct{}{}
			tasks = append(tasks, sweepTask{entity: entity, close: true})
		}

		pending, err := uc.Reader.ListAwaitingDistribution(ctx, kind, now, batch)
		if err != nil {
			return nil, fmt.Errorf("list pending %s: %w", kind, err)
		}
		for _, entity := range pending {
			if _, ok := seen[entity.Key()]; ok {
				continue
			}
			seen[entity.Key()] = struct{}{}
			tasks = append(tasks, sweepTask{entity: entity})
		}
	}
	return tasks, nil
}

func (uc SweepUseCase) run(ctx context.Context, task sweepTask) (closed bool, distributed bool, err error) {
	if task.close {
		result, err := uc.Closer.CloseAndDistribute(ctx, CloseCommand{
			EntityID:        task.entity.EntityID,
			Kind:            task.entity.Kind,
			SkipAuthorCheck: true,
		})
		if err != nil {
			return false, false, err
		}
		return !result.AlreadyClosed, result.Distribution != nil && !result.Distribution.AlreadyDistributed, result.DistributionError
	}
	if uc.Distributor == nil || task.entity.ExtraCredit <= 0 {
		return false, false, nil
	}
	outcome, err := uc.Distributor.Distribute(ctx, task.entity.Kind, task.entity.EntityID)
	if err != nil {
		return false, false, err
	}
	return false, !outcome.AlreadyDistributed, nil
}

func (uc SweepUseCase) record(outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.SweepRun(outcome)
	}
}
