package commands

import (
	"context"
	"log/slog"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type PullUpCommand struct {
	EntityID string
	ActorID  string
	// ExtraCredit and WinnerCount raise the lottery pool when set; the
	// author pays only the increase.
	ExtraCredit int64
	WinnerCount int
}

type PullUpResult struct {
	Entity  entities.Entity
	Charged int64
	Receipt ports.PostingReceipt
	// Repaired is set when the charge had committed without the entity
	// update and the update was rebuilt from it.
	Repaired bool
}

type PullUpUseCase struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Ledger     ports.Ledger
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (uc PullUpUseCase) Execute(ctx context.Context, cmd PullUpCommand) (PullUpResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	entityID, err := normalizeRef(entities.KindResearch, cmd.EntityID)
	if err != nil {
		return PullUpResult{}, err
	}
	actorID, err := normalizeSubject(cmd.ActorID)
	if err != nil {
		return PullUpResult{}, err
	}
	if cmd.ExtraCredit < 0 || cmd.WinnerCount < 0 {
		return PullUpResult{}, domainerrors.ErrInvalidExtraCredit
	}

	var result PullUpResult
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
		if entity.Closed {
			return domainerrors.ErrEntityClosed
		}

		extraCredit, winnerCount := entity.ExtraCredit, entity.WinnerCount
		if cmd.ExtraCredit > 0 && cmd.WinnerCount > 0 {
			extraCredit, winnerCount = cmd.ExtraCredit, cmd.WinnerCount
		}
		charge := entities.PullUpCharge(entity, extraCredit, winnerCount)

		next := entity.Touch(now)
		next.PulledUpAt = &now
		next.ExtraCredit = extraCredit
		next.WinnerCount = winnerCount
		next.Revision++
		if next.DistributionState == entities.DistributionNotApplicable {
			next.DistributionState = entities.InitialDistributionState(extraCredit, winnerCount)
		}
		if err := uc.Repository.UpdateEntity(ctx, sessions, next, entity.Version); err != nil {
			return err
		}
		receipt, repaired, err := chargeRevision(ctx, uc.Ledger, sessions, ports.Posting{
			SubjectID: actorID,
			Delta:     -charge,
			Kind:      ports.PostingResearchPullUp,
			Reason:    entity.Title,
			Reference: entity.NextRevisionRef(),
		})
		if err != nil {
			return err
		}
		result = PullUpResult{Entity: next, Charged: -receipt.Delta, Receipt: receipt, Repaired: repaired}
		return nil
	})
	if err != nil {
		return PullUpResult{}, err
	}
	logger.Info("research pulled up",
		"event", "survey_research_pulled_up",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", entityID,
		"actor_id", actorID,
		"charged", result.Charged,
		"repaired", result.Repaired,
	)
	return result, nil
}

// chargeRevision posts the charge of an author's paid change unless an
// earlier attempt of the same revision already committed it.
func chargeRevision(ctx context.Context, ledger ports.Ledger, sessions ports.Sessions, posting ports.Posting) (ports.PostingReceipt, bool, error) {
	paid, found, err := ledger.FindPosting(ctx, sessions, posting.SubjectID, posting.Reference, posting.Kind)
	if err != nil || found {
		return paid, found, err
	}
	receipt, err := ledger.Post(ctx, sessions, posting)
	return receipt, false, err
}
