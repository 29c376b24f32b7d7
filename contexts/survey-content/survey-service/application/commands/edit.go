package commands

import (
	"context"
	"log/slog"
	"strings"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type EditCommand struct {
	EntityID string
	ActorID  string
	// Title is kept when empty.
	Title       string
	ExtraCredit int64
	WinnerCount int
}

type EditResult struct {
	Entity   entities.Entity
	Charged  int64
	Receipt  *ports.PostingReceipt
	Repaired bool
}

// EditUseCase lets the author change an open research's title and lottery
// pool. Only a larger pool costs credit; the lottery turns on or off with
// the pool while the entity is undistributed.
type EditUseCase struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Ledger     ports.Ledger
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (uc EditUseCase) Execute(ctx context.Context, cmd EditCommand) (EditResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	entityID, err := normalizeRef(entities.KindResearch, cmd.EntityID)
	if err != nil {
		return EditResult{}, err
	}
	actorID, err := normalizeSubject(cmd.ActorID)
	if err != nil {
		return EditResult{}, err
	}
	if cmd.ExtraCredit < 0 || cmd.WinnerCount < 0 {
		return EditResult{}, domainerrors.ErrInvalidExtraCredit
	}
	title := strings.TrimSpace(cmd.Title)

	var result EditResult
	stores := []ports.StoreID{ports.StoreUsers, ports.StoreResearch}
	err = uc.UnitOfWork.Run(ctx, stores, func(ctx context.Context, sessions ports.Sessions) error {
		now := uc.Clock.Now().UTC()
		entity, err := uc.Repository.LoadEntity(ctx, sessions, entities.KindResearch, entityID)
		if err != nil {
			return err
		}
		if entity.AuthorID != actorID {
			return domainerrors.ErrNotAuthor
		}
		if entity.Deleted() {
			return domainerrors.ErrEntityDeleted
		}
		if entity.Closed || entity.DistributionState == entities.DistributionDistributed {
			return domainerrors.ErrEntityClosed
		}

		charge := entities.PoolIncrease(entity, cmd.ExtraCredit, cmd.WinnerCount)
		next := entity.Touch(now)
		if title != "" {
			next.Title = title
		}
		next.ExtraCredit = cmd.ExtraCredit
		next.WinnerCount = cmd.WinnerCount
		next.DistributionState = entities.RevisedDistributionState(entity.DistributionState, cmd.ExtraCredit, cmd.WinnerCount)
		if charge > 0 {
			next.Revision++
		}
		if err := uc.Repository.UpdateEntity(ctx, sessions, next, entity.Version); err != nil {
			return err
		}

		result = EditResult{Entity: next}
		if charge == 0 {
			return nil
		}
		receipt, repaired, err := chargeRevision(ctx, uc.Ledger, sessions, ports.Posting{
			SubjectID: actorID,
			Delta:     -charge,
			Kind:      ports.PostingResearchEdit,
			Reason:    entity.Title,
			Reference: entity.NextRevisionRef(),
		})
		if err != nil {
			return err
		}
		result.Charged = -receipt.Delta
		result.Receipt = &receipt
		result.Repaired = repaired
		return nil
	})
	if err != nil {
		return EditResult{}, err
	}
	logger.Info("research edited",
		"event", "survey_research_edited",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", entityID,
		"actor_id", actorID,
		"charged", result.Charged,
		"distribution_state", string(result.Entity.DistributionState),
		"repaired", result.Repaired,
	)
	return result, nil
}
