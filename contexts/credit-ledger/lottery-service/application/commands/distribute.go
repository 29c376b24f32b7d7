package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pollstack/contexts/credit-ledger/lottery-service/application"
	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/lottery-service/domain/errors"
	"pollstack/contexts/credit-ledger/lottery-service/ports"
)

type DistributeCommand struct {
	EntityID   string
	EntityKind entities.EntityKind
	// RewardAmount and WinnerCount fall back to the entity's own settings when zero.
	RewardAmount int64
	WinnerCount  int
}

// DistributeUseCase pays an entity's lottery winners exactly once.
//
// The draw record, every payout and the DISTRIBUTED flag are written in a
// single unit over the users store and the entity's store. Users commits
// first, so the only partial outcome is a committed draw with payouts on an
// entity still PENDING; a rerun reuses that draw and skips subjects already
// paid.
type DistributeUseCase struct {
	UnitOfWork ports.UnitOfWork
	Entities   ports.Entities
	Ledger     ports.Ledger
	Draws      ports.Draws
	Publisher  ports.Publisher
	Random     entities.RandomSource
	Coalescer  ports.Coalescer
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	// SharedTimeout bounds a coalesced run, which no longer follows any
	// single caller's context.
	SharedTimeout time.Duration
	Logger        *slog.Logger
}

const defaultSharedTimeout = 30 * time.Second

type distribution struct {
	result entities.Result
	title  string
	reward int64
}

func (uc DistributeUseCase) Execute(ctx context.Context, cmd DistributeCommand) (entities.Result, error) {
	cmd.EntityID = strings.TrimSpace(cmd.EntityID)
	if cmd.EntityID == "" {
		return entities.Result{}, domainerrors.ErrInvalidEntityID
	}
	if !cmd.EntityKind.Valid() {
		return entities.Result{}, fmt.Errorf("%w: %q", domainerrors.ErrInvalidEntityKind, cmd.EntityKind)
	}
	if cmd.WinnerCount < 0 || cmd.RewardAmount < 0 {
		return entities.Result{}, domainerrors.ErrInvalidWinnerCount
	}

	if uc.Coalescer == nil {
		return uc.distribute(ctx, cmd)
	}
	return uc.coalesced(ctx, cmd)
}

type coalescedOutcome struct {
	result entities.Result
	err    error
}

// coalesced runs one distribution per key on a context detached from every
// caller, so a cancelled request does not fail the callers sharing its run.
// Each caller still stops waiting when its own context ends.
func (uc DistributeUseCase) coalesced(ctx context.Context, cmd DistributeCommand) (entities.Result, error) {
	timeout := uc.SharedTimeout
	if timeout <= 0 {
		timeout = defaultSharedTimeout
	}
	detached := context.WithoutCancel(ctx)
	key := string(cmd.EntityKind) + ":" + cmd.EntityID

	done := make(chan coalescedOutcome, 1)
	go func() {
		value, err, _ := uc.Coalescer.Do(key, func() (any, error) {
			runCtx, cancel := context.WithTimeout(detached, timeout)
			defer cancel()
			return uc.distribute(runCtx, cmd)
		})
		if err != nil {
			done <- coalescedOutcome{err: err}
			return
		}
		done <- coalescedOutcome{result: value.(entities.Result)}
	}()

	select {
	case <-ctx.Done():
		return entities.Result{}, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}

func (uc DistributeUseCase) distribute(ctx context.Context, cmd DistributeCommand) (entities.Result, error) {
	logger := application.ResolveLogger(uc.Logger)

	var outcome distribution
	stores := []ports.StoreID{ports.StoreUsers, ports.StoreFor(cmd.EntityKind)}
	err := uc.UnitOfWork.Run(ctx, stores, func(ctx context.Context, sessions ports.Sessions) error {
		next, err := uc.apply(ctx, sessions, cmd)
		if err != nil {
			return err
		}
		outcome = next
		return nil
	})
	if err != nil {
		logger.Error("lottery distribution failed",
			"event", "lottery_distribution_failed",
			"module", "credit-ledger/lottery-service",
			"layer", "application",
			"entity_id", cmd.EntityID,
			"entity_kind", string(cmd.EntityKind),
			"error", err.Error(),
		)
		return entities.Result{}, err
	}

	result := outcome.result
	if result.AlreadyDistributed || result.State != entities.DistributionDistributed {
		logger.Info("lottery distribution skipped",
			"event", "lottery_distribution_skipped",
			"module", "credit-ledger/lottery-service",
			"layer", "application",
			"entity_id", cmd.EntityID,
			"entity_kind", string(cmd.EntityKind),
			"state", string(result.State),
		)
		return result, nil
	}

	if uc.Metrics != nil {
		for range result.Payouts {
			uc.Metrics.PayoutMade(string(cmd.EntityKind))
		}
	}
	logger.Info("lottery distributed",
		"event", "lottery_distributed",
		"module", "credit-ledger/lottery-service",
		"layer", "application",
		"entity_id", cmd.EntityID,
		"entity_kind", string(cmd.EntityKind),
		"winners", len(result.Winners),
		"reward_amount", outcome.reward,
	)

	if uc.Publisher != nil && len(result.Winners) > 0 {
		if err := uc.Publisher.PublishWinners(ctx, result, outcome.title, outcome.reward); err != nil {
			logger.Warn("lottery winner notification failed",
				"event", "lottery_winner_publish_failed",
				"module", "credit-ledger/lottery-service",
				"layer", "application",
				"entity_id", cmd.EntityID,
				"error", err.Error(),
			)
		}
	}
	return result, nil
}

func (uc DistributeUseCase) apply(ctx context.Context, sessions ports.Sessions, cmd DistributeCommand) (distribution, error) {
	entity, err := uc.Entities.LoadRewardable(ctx, sessions, cmd.EntityKind, cmd.EntityID)
	if err != nil {
		return distribution{}, err
	}
	draw, drawn, err := uc.Draws.FindDraw(ctx, sessions, cmd.EntityKind, cmd.EntityID)
	if err != nil {
		return distribution{}, err
	}

	out := distribution{
		result: entities.Result{
			EntityID:   cmd.EntityID,
			EntityKind: cmd.EntityKind,
			State:      entity.DistributionState,
		},
		title: entity.Title,
	}

	if entity.DistributionState != entities.DistributionPending {
		out.result.AlreadyDistributed = entity.DistributionState == entities.DistributionDistributed
		if !drawn {
			return out, nil
		}
		payouts, err := uc.existingPayouts(ctx, sessions, draw)
		if err != nil {
			return distribution{}, err
		}
		out.result.Winners = draw.Winners
		out.result.Payouts = payouts
		out.reward = draw.RewardAmount
		return out, nil
	}

	if !drawn {
		draw, err = uc.newDraw(ctx, sessions, cmd, entity)
		if err != nil {
			return distribution{}, err
		}
	}

	payouts := make([]entities.Payout, 0, len(draw.Winners))
	for _, subjectID := range draw.Winners {
		payout, paid, err := uc.Ledger.FindPayout(ctx, sessions, subjectID, draw.EntityID, draw.EntityKind)
		if err != nil {
			return distribution{}, err
		}
		if !paid {
			payout, err = uc.Ledger.CreditWinner(ctx, sessions, ports.PayoutRequest{
				SubjectID:  subjectID,
				Amount:     draw.RewardAmount,
				EntityID:   draw.EntityID,
				EntityKind: draw.EntityKind,
				Reason:     entity.Title,
			})
			if err != nil {
				return distribution{}, fmt.Errorf("credit winner %s: %w", subjectID, err)
			}
		}
		payouts = append(payouts, payout)
	}

	if err := uc.Entities.MarkDistributed(ctx, sessions, cmd.EntityKind, cmd.EntityID, uc.Clock.Now().UTC()); err != nil {
		return distribution{}, err
	}

	out.result.State = entities.DistributionDistributed
	out.result.Winners = draw.Winners
	out.result.Payouts = payouts
	out.reward = draw.RewardAmount
	return out, nil
}

func (uc DistributeUseCase) newDraw(
	ctx context.Context,
	sessions ports.Sessions,
	cmd DistributeCommand,
	entity ports.RewardableEntity,
) (entities.Draw, error) {
	reward := cmd.RewardAmount
	if reward == 0 {
		reward = entity.RewardPerWinner
	}
	if reward <= 0 {
		return entities.Draw{}, domainerrors.ErrNothingToDistribute
	}
	winnerCount := cmd.WinnerCount
	if winnerCount == 0 {
		winnerCount = entity.WinnerCount
	}
	if winnerCount <= 0 {
		return entities.Draw{}, domainerrors.ErrInvalidWinnerCount
	}

	participants, err := uc.Entities.ListParticipants(ctx, sessions, cmd.EntityKind, cmd.EntityID)
	if err != nil {
		return entities.Draw{}, err
	}
	drawID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Draw{}, fmt.Errorf("generate draw id: %w", err)
	}

	draw := entities.Draw{
		DrawID:       drawID,
		EntityID:     cmd.EntityID,
		EntityKind:   cmd.EntityKind,
		RewardAmount: reward,
		Winners:      entities.PickWinners(entities.EligibleSubjects(participants), winnerCount, uc.Random),
		DrawnAt:      uc.Clock.Now().UTC(),
	}
	if err := uc.Draws.InsertDraw(ctx, sessions, draw); err != nil {
		return entities.Draw{}, err
	}
	return draw, nil
}

func (uc DistributeUseCase) existingPayouts(ctx context.Context, sessions ports.Sessions, draw entities.Draw) ([]entities.Payout, error) {
	payouts := make([]entities.Payout, 0, len(draw.Winners))
	for _, subjectID := range draw.Winners {
		payout, paid, err := uc.Ledger.FindPayout(ctx, sessions, subjectID, draw.EntityID, draw.EntityKind)
		if err != nil {
			return nil, err
		}
		if paid {
			payouts = append(payouts, payout)
		}
	}
	return payouts, nil
}
