package commands

import (
	"context"
	"log/slog"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type ParticipateCommand struct {
	Kind      entities.Kind
	EntityID  string
	SubjectID string
}

type ParticipateResult struct {
	Participation entities.Participation
	Reward        int64
	Receipt       *ports.PostingReceipt
	// Deleted is set when the research was deleted before the answer came
	// in; the reward is paid but no participation is recorded.
	Deleted bool
	// Repaired is set when the reward had committed without its
	// participation and the participation was rebuilt from it.
	Repaired bool
}

// ParticipateUseCase records a participation. Research participants are
// credited in the same unit; vote participation touches only the vote store.
type ParticipateUseCase struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Ledger     ports.Ledger
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (uc ParticipateUseCase) Execute(ctx context.Context, cmd ParticipateCommand) (ParticipateResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	entityID, err := normalizeRef(cmd.Kind, cmd.EntityID)
	if err != nil {
		return ParticipateResult{}, err
	}
	subjectID, err := normalizeSubject(cmd.SubjectID)
	if err != nil {
		return ParticipateResult{}, err
	}

	stores := []ports.StoreID{ports.StoreFor(cmd.Kind)}
	if cmd.Kind == entities.KindResearch {
		stores = append(stores, ports.StoreUsers)
	}

	var result ParticipateResult
	err = uc.UnitOfWork.Run(ctx, stores, func(ctx context.Context, sessions ports.Sessions) error {
		now := uc.Clock.Now().UTC()
		entity, err := uc.Repository.LoadEntity(ctx, sessions, cmd.Kind, entityID)
		if err != nil {
			return err
		}
		if entity.AuthorID == subjectID {
			return domainerrors.ErrAuthorCannotParticipate
		}
		_, exists, err := uc.Repository.FindParticipation(ctx, sessions, cmd.Kind, entityID, subjectID)
		if err != nil {
			return err
		}
		if exists {
			return domainerrors.ErrAlreadyParticipated
		}
		if entity.Deleted() {
			if cmd.Kind != entities.KindResearch {
				return domainerrors.ErrEntityDeleted
			}
			next, err := uc.creditDeleted(ctx, sessions, entity, subjectID)
			if err != nil {
				return err
			}
			result = next
			return nil
		}

		var paid *ports.PostingReceipt
		if cmd.Kind == entities.KindResearch {
			receipt, found, err := uc.Ledger.FindPosting(ctx, sessions, subjectID, entityID, ports.PostingResearchParticipate)
			if err != nil {
				return err
			}
			if found {
				paid = &receipt
			}
		}
		// A paid participant keeps the participation even if the entity
		// closed before the rerun.
		if paid == nil && (entity.Closed || entity.DeadlinePassed(now)) {
			return domainerrors.ErrEntityClosed
		}

		participation := entities.Participation{
			EntityID:  entityID,
			Kind:      cmd.Kind,
			SubjectID: subjectID,
			Valid:     true,
			CreatedAt: now,
		}
		if err := uc.Repository.InsertParticipation(ctx, sessions, participation); err != nil {
			return err
		}
		next := entity.Touch(now)
		next.ParticipantCount++
		if err := uc.Repository.UpdateEntity(ctx, sessions, next, entity.Version); err != nil {
			return err
		}

		result = ParticipateResult{Participation: participation}
		if cmd.Kind != entities.KindResearch {
			return nil
		}
		if paid != nil {
			result.Reward = paid.Delta
			result.Receipt = paid
			result.Repaired = true
			return nil
		}
		reward := entities.ParticipationReward(entity.EstimatedMinutes)
		receipt, err := uc.Ledger.Post(ctx, sessions, ports.Posting{
			SubjectID: subjectID,
			Delta:     reward,
			Kind:      ports.PostingResearchParticipate,
			Reason:    entity.Title,
			Reference: entityID,
		})
		if err != nil {
			return err
		}
		result.Reward = reward
		result.Receipt = &receipt
		return nil
	})
	if err != nil {
		return ParticipateResult{}, err
	}

	logger.Info("participation recorded",
		"event", "survey_participation_recorded",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", entityID,
		"kind", string(cmd.Kind),
		"subject_id", subjectID,
		"reward", result.Reward,
		"deleted", result.Deleted,
		"repaired", result.Repaired,
	)
	return result, nil
}

// creditDeleted pays for an answer to a research deleted meanwhile. Only the
// ledger is written, and the posting itself marks the subject as paid.
func (uc ParticipateUseCase) creditDeleted(
	ctx context.Context,
	sessions ports.Sessions,
	entity entities.Entity,
	subjectID string,
) (ParticipateResult, error) {
	_, paid, err := uc.Ledger.FindPosting(ctx, sessions, subjectID, entity.EntityID, ports.PostingDeletedParticipate)
	if err != nil {
		return ParticipateResult{}, err
	}
	if paid {
		return ParticipateResult{}, domainerrors.ErrAlreadyParticipated
	}
	reward := entities.ParticipationReward(entity.EstimatedMinutes)
	receipt, err := uc.Ledger.Post(ctx, sessions, ports.Posting{
		SubjectID: subjectID,
		Delta:     reward,
		Kind:      ports.PostingDeletedParticipate,
		Reason:    entity.Title,
		Reference: entity.EntityID,
	})
	if err != nil {
		return ParticipateResult{}, err
	}
	return ParticipateResult{
		Participation: entities.Participation{EntityID: entity.EntityID, Kind: entity.Kind, SubjectID: subjectID},
		Reward:        reward,
		Receipt:       &receipt,
		Deleted:       true,
	}, nil
}

type InvalidateCommand struct {
	Kind      entities.Kind
	EntityID  string
	SubjectID string
}

// InvalidateUseCase excludes a participation from lottery eligibility
// without deleting it or reversing its reward.
type InvalidateUseCase struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Logger     *slog.Logger
}

func (uc InvalidateUseCase) Execute(ctx context.Context, cmd InvalidateCommand) (entities.Participation, error) {
	logger := application.ResolveLogger(uc.Logger)
	entityID, err := normalizeRef(cmd.Kind, cmd.EntityID)
	if err != nil {
		return entities.Participation{}, err
	}
	subjectID, err := normalizeSubject(cmd.SubjectID)
	if err != nil {
		return entities.Participation{}, err
	}

	var out entities.Participation
	err = uc.UnitOfWork.Run(ctx, []ports.StoreID{ports.StoreFor(cmd.Kind)}, func(ctx context.Context, sessions ports.Sessions) error {
		participation, found, err := uc.Repository.FindParticipation(ctx, sessions, cmd.Kind, entityID, subjectID)
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrParticipationNotFound
		}
		out = participation
		if !participation.Valid {
			return nil
		}
		out.Valid = false
		return uc.Repository.UpdateParticipation(ctx, sessions, out)
	})
	if err != nil {
		return entities.Participation{}, err
	}
	logger.Info("participation invalidated",
		"event", "survey_participation_invalidated",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", entityID,
		"kind", string(cmd.Kind),
		"subject_id", subjectID,
	)
	return out, nil
}
