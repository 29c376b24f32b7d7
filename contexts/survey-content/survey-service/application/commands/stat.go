package commands

import (
	"context"
	"log/slog"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type InquireStatCommand struct {
	EntityID  string
	SubjectID string
}

type InquireStatResult struct {
	Ticket  entities.StatTicket
	Charged int64
	Receipt *ports.PostingReceipt
	// Repaired is set when the charge had committed without its ticket and
	// the ticket was rebuilt from it.
	Repaired bool
}

// InquireStatUseCase sells access to a vote's statistics. The ticket is
// permanent, so repeat inquiries by the same subject are free.
type InquireStatUseCase struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Ledger     ports.Ledger
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (uc InquireStatUseCase) Execute(ctx context.Context, cmd InquireStatCommand) (InquireStatResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	entityID, err := normalizeRef(entities.KindVote, cmd.EntityID)
	if err != nil {
		return InquireStatResult{}, err
	}
	subjectID, err := normalizeSubject(cmd.SubjectID)
	if err != nil {
		return InquireStatResult{}, err
	}

	var result InquireStatResult
	stores := []ports.StoreID{ports.StoreUsers, ports.StoreVote}
	err = uc.UnitOfWork.Run(ctx, stores, func(ctx context.Context, sessions ports.Sessions) error {
		now := uc.Clock.Now().UTC()
		entity, err := uc.Repository.LoadEntity(ctx, sessions, entities.KindVote, entityID)
		if err != nil {
			return err
		}
		ticket := entities.StatTicket{EntityID: entityID, SubjectID: subjectID, CreatedAt: now}
		held, err := uc.Repository.HasStatTicket(ctx, sessions, entityID, subjectID)
		if err != nil {
			return err
		}
		if held {
			result = InquireStatResult{Ticket: ticket}
			return nil
		}
		if err := uc.Repository.InsertStatTicket(ctx, sessions, ticket); err != nil {
			return err
		}
		paid, found, err := uc.Ledger.FindPosting(ctx, sessions, subjectID, entityID, ports.PostingInquireVoteStat)
		if err != nil {
			return err
		}
		if found {
			result = InquireStatResult{Ticket: ticket, Charged: -paid.Delta, Receipt: &paid, Repaired: true}
			return nil
		}
		receipt, err := uc.Ledger.Post(ctx, sessions, ports.Posting{
			SubjectID: subjectID,
			Delta:     -entities.StatInquiryCost,
			Kind:      ports.PostingInquireVoteStat,
			Reason:    entity.Title,
			Reference: entityID,
		})
		if err != nil {
			return err
		}
		result = InquireStatResult{Ticket: ticket, Charged: entities.StatInquiryCost, Receipt: &receipt}
		return nil
	})
	if err != nil {
		return InquireStatResult{}, err
	}
	logger.Info("vote statistics inquired",
		"event", "survey_vote_stat_inquired",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", entityID,
		"subject_id", subjectID,
		"charged", result.Charged,
		"repaired", result.Repaired,
	)
	return result, nil
}
