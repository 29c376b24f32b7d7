package commands

import (
	"context"
	"log/slog"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type CloseCommand struct {
	EntityID        string
	Kind            entities.Kind
	ActorID         string
	SkipAuthorCheck bool
}

type CloseResult struct {
	Entity        entities.Entity
	AlreadyClosed bool
	Distribution  *ports.DistributionOutcome
	// DistributionError is set when the entity closed but its lottery did
	// not run to completion. The sweep retries it.
	DistributionError error
}

// CloseUseCase closes an entity in its own unit, then runs the lottery as
// a separate unit. A failed lottery never reopens the entity.
type CloseUseCase struct {
	UnitOfWork  ports.UnitOfWork
	Repository  ports.Repository
	Distributor ports.Distributor
	Timers      ports.Timers
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (uc CloseUseCase) CloseAndDistribute(ctx context.Context, cmd CloseCommand) (CloseResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	entityID, err := normalizeRef(cmd.Kind, cmd.EntityID)
	if err != nil {
		return CloseResult{}, err
	}

	var result CloseResult
	err = uc.UnitOfWork.Run(ctx, []ports.StoreID{ports.StoreFor(cmd.Kind)}, func(ctx context.Context, sessions ports.Sessions) error {
		entity, err := uc.Repository.LoadEntity(ctx, sessions, cmd.Kind, entityID)
		if err != nil {
			return err
		}
		if !cmd.SkipAuthorCheck && entity.AuthorID != cmd.ActorID {
			return domainerrors.ErrNotAuthor
		}
		closed, changed := entity.Close(uc.Clock.Now().UTC())
		if !changed {
			result = CloseResult{Entity: entity, AlreadyClosed: true}
			return nil
		}
		if err := uc.Repository.UpdateEntity(ctx, sessions, closed, entity.Version); err != nil {
			return err
		}
		result = CloseResult{Entity: closed}
		return nil
	})
	if err != nil {
		logger.Warn("entity close failed",
			"event", "survey_entity_close_failed",
			"module", "survey-content/survey-service",
			"layer", "application",
			"entity_id", entityID,
			"kind", string(cmd.Kind),
			"error", err.Error(),
		)
		return CloseResult{}, err
	}

	if uc.Timers != nil {
		uc.Timers.Cancel(cmd.Kind, entityID)
	}
	if !result.AlreadyClosed {
		logger.Info("entity closed",
			"event", "survey_entity_closed",
			"module", "survey-content/survey-service",
			"layer", "application",
			"entity_id", entityID,
			"kind", string(cmd.Kind),
			"actor_id", cmd.ActorID,
		)
	}

	if !result.Entity.HasLottery() || uc.Distributor == nil {
		return result, nil
	}
	outcome, err := uc.Distributor.Distribute(ctx, cmd.Kind, entityID)
	if err != nil {
		logger.Error("lottery after close failed",
			"event", "survey_close_distribution_failed",
			"module", "survey-content/survey-service",
			"layer", "application",
			"entity_id", entityID,
			"kind", string(cmd.Kind),
			"error", err.Error(),
		)
		result.DistributionError = err
		return result, nil
	}
	result.Distribution = &outcome
	result.Entity.DistributionState = entities.DistributionDistributed
	return result, nil
}
