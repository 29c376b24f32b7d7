package commands

import (
	"context"
	"log/slog"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type DeleteCommand struct {
	EntityID string
	ActorID  string
}

type DeleteResult struct {
	Entity         entities.Entity
	AlreadyDeleted bool
}

// DeleteUseCase soft-deletes a research. The row stays so late answers can
// still be credited and a pending lottery is still paid by the sweep.
type DeleteUseCase struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Timers     ports.Timers
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (uc DeleteUseCase) Execute(ctx context.Context, cmd DeleteCommand) (DeleteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	entityID, err := normalizeRef(entities.KindResearch, cmd.EntityID)
	if err != nil {
		return DeleteResult{}, err
	}
	actorID, err := normalizeSubject(cmd.ActorID)
	if err != nil {
		return DeleteResult{}, err
	}

	var result DeleteResult
	err = uc.UnitOfWork.Run(ctx, []ports.StoreID{ports.StoreResearch}, func(ctx context.Context, sessions ports.Sessions) error {
		entity, err := uc.Repository.LoadEntity(ctx, sessions, entities.KindResearch, entityID)
		if err != nil {
			return err
		}
		if entity.AuthorID != actorID {
			return domainerrors.ErrNotAuthor
		}
		next, changed := entity.Delete(uc.Clock.Now().UTC())
		result = DeleteResult{Entity: next, AlreadyDeleted: !changed}
		if !changed {
			return nil
		}
		return uc.Repository.UpdateEntity(ctx, sessions, next, entity.Version)
	})
	if err != nil {
		return DeleteResult{}, err
	}
	if uc.Timers != nil {
		uc.Timers.Cancel(entities.KindResearch, entityID)
	}
	logger.Info("research deleted",
		"event", "survey_research_deleted",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", entityID,
		"actor_id", actorID,
		"already_deleted", result.AlreadyDeleted,
	)
	return result, nil
}
