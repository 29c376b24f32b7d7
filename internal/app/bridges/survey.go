package bridges

import (
	"context"
	"time"

	lotterycommands "pollstack/contexts/credit-ledger/lottery-service/application/commands"
	lotteryentities "pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	lotteryports "pollstack/contexts/credit-ledger/lottery-service/ports"
	surveyentities "pollstack/contexts/survey-content/survey-service/domain/entities"
	surveyports "pollstack/contexts/survey-content/survey-service/ports"
)

// LotteryEntities exposes researches and votes to the lottery.
type LotteryEntities struct {
	Repository surveyports.Repository
}

func (e LotteryEntities) LoadRewardable(
	ctx context.Context,
	sessions lotteryports.Sessions,
	kind lotteryentities.EntityKind,
	entityID string,
) (lotteryports.RewardableEntity, error) {
	entity, err := e.Repository.LoadEntity(ctx, sessions, surveyentities.Kind(kind), entityID)
	if err != nil {
		return lotteryports.RewardableEntity{}, err
	}
	return lotteryports.RewardableEntity{
		EntityID:          entity.EntityID,
		Kind:              kind,
		Title:             entity.Title,
		RewardPerWinner:   entity.ExtraCredit,
		WinnerCount:       entity.WinnerCount,
		DistributionState: lotteryentities.DistributionState(entity.DistributionState),
		Closed:            entity.Closed,
	}, nil
}

func (e LotteryEntities) ListParticipants(
	ctx context.Context,
	sessions lotteryports.Sessions,
	kind lotteryentities.EntityKind,
	entityID string,
) ([]lotteryentities.Participant, error) {
	participations, err := e.Repository.ListParticipations(ctx, sessions, surveyentities.Kind(kind), entityID)
	if err != nil {
		return nil, err
	}
	out := make([]lotteryentities.Participant, 0, len(participations))
	for _, p := range participations {
		out = append(out, lotteryentities.Participant{SubjectID: p.SubjectID, Valid: p.Valid})
	}
	return out, nil
}

func (e LotteryEntities) MarkDistributed(
	ctx context.Context,
	sessions lotteryports.Sessions,
	kind lotteryentities.EntityKind,
	entityID string,
	at time.Time,
) error {
	entity, err := e.Repository.LoadEntity(ctx, sessions, surveyentities.Kind(kind), entityID)
	if err != nil {
		return err
	}
	next, changed := entity.MarkDistributed(at)
	if !changed {
		return nil
	}
	return e.Repository.UpdateEntity(ctx, sessions, next, entity.Version)
}

// SurveyDistributor lets closure hand a finished entity to the lottery.
type SurveyDistributor struct {
	Distributor lotterycommands.DistributeUseCase
}

func (d SurveyDistributor) Distribute(ctx context.Context, kind surveyentities.Kind, entityID string) (surveyports.DistributionOutcome, error) {
	result, err := d.Distributor.Execute(ctx, lotterycommands.DistributeCommand{
		EntityID:   entityID,
		EntityKind: lotteryentities.EntityKind(kind),
	})
	if err != nil {
		return surveyports.DistributionOutcome{}, err
	}
	return surveyports.DistributionOutcome{
		Winners:            result.Winners,
		AlreadyDistributed: result.AlreadyDistributed,
	}, nil
}

var (
	_ lotteryports.Entities   = LotteryEntities{}
	_ surveyports.Distributor = SurveyDistributor{}
)
