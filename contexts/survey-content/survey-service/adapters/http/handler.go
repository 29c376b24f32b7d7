package httpadapter

import (
	"context"
	"log/slog"

	"pollstack/contexts/survey-content/survey-service/application/commands"
	"pollstack/contexts/survey-content/survey-service/application/queries"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	httptransport "pollstack/contexts/survey-content/survey-service/transport/http"
)

type Handler struct {
	Closer       commands.CloseUseCase
	Sweeper      commands.SweepUseCase
	Uploads      commands.UploadUseCase
	Participants commands.ParticipateUseCase
	PullUps      commands.PullUpUseCase
	Editor       commands.EditUseCase
	Deleter      commands.DeleteUseCase
	StatTickets  commands.InquireStatUseCase
	Entities     queries.EntityUseCase
	Logger       *slog.Logger
}

// CloseHandler closes on behalf of actorID. skipAuthorCheck is only honoured
// for administrative callers; the router decides who that is.
func (h Handler) CloseHandler(
	ctx context.Context,
	actorID string,
	kind string,
	entityID string,
	skipAuthorCheck bool,
) (httptransport.CloseResponse, error) {
	result, err := h.Closer.CloseAndDistribute(ctx, commands.CloseCommand{
		EntityID:        entityID,
		Kind:            entities.Kind(kind),
		ActorID:         actorID,
		SkipAuthorCheck: skipAuthorCheck,
	})
	if err != nil {
		return httptransport.CloseResponse{}, err
	}
	resp := httptransport.CloseResponse{
		Entity:        toEntityResponse(result.Entity),
		AlreadyClosed: result.AlreadyClosed,
	}
	if result.Distribution != nil {
		resp.Winners = result.Distribution.Winners
		resp.AlreadyDistributed = result.Distribution.AlreadyDistributed
	}
	if result.DistributionError != nil {
		resp.DistributionError = result.DistributionError.Error()
	}
	return resp, nil
}

func (h Handler) SweepHandler(ctx context.Context) (httptransport.SweepResponse, error) {
	report, err := h.Sweeper.DistributeAllPending(ctx)
	if err != nil {
		return httptransport.SweepResponse{}, err
	}
	return httptransport.SweepResponse{
		Closed:      report.Closed,
		Distributed: report.Distributed,
		Failed:      report.Failed,
	}, nil
}

func (h Handler) UploadHandler(
	ctx context.Context,
	actorID string,
	kind string,
	idempotencyKey string,
	req httptransport.UploadRequest,
) (httptransport.UploadResponse, error) {
	result, err := h.Uploads.Execute(ctx, commands.UploadCommand{
		Kind:             entities.Kind(kind),
		AuthorID:         actorID,
		Title:            req.Title,
		Deadline:         req.Deadline,
		EstimatedMinutes: req.EstimatedMinutes,
		ExtraCredit:      req.ExtraCredit,
		WinnerCount:      req.WinnerCount,
		AgeScreening:     req.AgeScreening,
		IdempotencyKey:   idempotencyKey,
	})
	if err != nil {
		return httptransport.UploadResponse{}, err
	}
	resp := httptransport.UploadResponse{
		Entity:   toEntityResponse(result.Entity),
		Charged:  result.Charged,
		Replayed: result.Replayed,
	}
	if result.Receipt != nil {
		balance := result.Receipt.ResultingBalance
		resp.Balance = &balance
	}
	return resp, nil
}

func (h Handler) ParticipateHandler(
	ctx context.Context,
	actorID string,
	kind string,
	entityID string,
) (httptransport.ParticipateResponse, error) {
	result, err := h.Participants.Execute(ctx, commands.ParticipateCommand{
		Kind:      entities.Kind(kind),
		EntityID:  entityID,
		SubjectID: actorID,
	})
	if err != nil {
		return httptransport.ParticipateResponse{}, err
	}
	resp := httptransport.ParticipateResponse{
		EntityID:  result.Participation.EntityID,
		SubjectID: result.Participation.SubjectID,
		Reward:    result.Reward,
	}
	if result.Receipt != nil {
		balance := result.Receipt.ResultingBalance
		resp.Balance = &balance
	}
	return resp, nil
}

func (h Handler) PullUpHandler(
	ctx context.Context,
	actorID string,
	entityID string,
	req httptransport.PullUpRequest,
) (httptransport.ChargeResponse, error) {
	result, err := h.PullUps.Execute(ctx, commands.PullUpCommand{
		EntityID:    entityID,
		ActorID:     actorID,
		ExtraCredit: req.ExtraCredit,
		WinnerCount: req.WinnerCount,
	})
	if err != nil {
		return httptransport.ChargeResponse{}, err
	}
	entity := toEntityResponse(result.Entity)
	balance := result.Receipt.ResultingBalance
	return httptransport.ChargeResponse{Entity: &entity, Charged: result.Charged, Balance: &balance}, nil
}

func (h Handler) EditHandler(
	ctx context.Context,
	actorID string,
	entityID string,
	req httptransport.EditRequest,
) (httptransport.ChargeResponse, error) {
	result, err := h.Editor.Execute(ctx, commands.EditCommand{
		EntityID:    entityID,
		ActorID:     actorID,
		Title:       req.Title,
		ExtraCredit: req.ExtraCredit,
		WinnerCount: req.WinnerCount,
	})
	if err != nil {
		return httptransport.ChargeResponse{}, err
	}
	entity := toEntityResponse(result.Entity)
	resp := httptransport.ChargeResponse{Entity: &entity, Charged: result.Charged}
	if result.Receipt != nil {
		balance := result.Receipt.ResultingBalance
		resp.Balance = &balance
	}
	return resp, nil
}

func (h Handler) DeleteHandler(ctx context.Context, actorID string, entityID string) (httptransport.DeleteResponse, error) {
	result, err := h.Deleter.Execute(ctx, commands.DeleteCommand{EntityID: entityID, ActorID: actorID})
	if err != nil {
		return httptransport.DeleteResponse{}, err
	}
	return httptransport.DeleteResponse{
		Entity:         toEntityResponse(result.Entity),
		AlreadyDeleted: result.AlreadyDeleted,
	}, nil
}

func (h Handler) InquireStatHandler(ctx context.Context, actorID string, entityID string) (httptransport.ChargeResponse, error) {
	result, err := h.StatTickets.Execute(ctx, commands.InquireStatCommand{
		EntityID:  entityID,
		SubjectID: actorID,
	})
	if err != nil {
		return httptransport.ChargeResponse{}, err
	}
	resp := httptransport.ChargeResponse{Charged: result.Charged}
	if result.Receipt != nil {
		balance := result.Receipt.ResultingBalance
		resp.Balance = &balance
	}
	return resp, nil
}

func (h Handler) GetEntityHandler(ctx context.Context, kind string, entityID string) (httptransport.EntityResponse, error) {
	entity, err := h.Entities.GetEntity(ctx, entities.Kind(kind), entityID)
	if err != nil {
		return httptransport.EntityResponse{}, err
	}
	return toEntityResponse(entity), nil
}

func toEntityResponse(entity entities.Entity) httptransport.EntityResponse {
	return httptransport.EntityResponse{
		EntityID:          entity.EntityID,
		Kind:              string(entity.Kind),
		Title:             entity.Title,
		AuthorID:          entity.AuthorID,
		Deadline:          entity.Deadline,
		ExtraCredit:       entity.ExtraCredit,
		WinnerCount:       entity.WinnerCount,
		DistributionState: string(entity.DistributionState),
		Closed:            entity.Closed,
		Deleted:           entity.Deleted(),
		ParticipantCount:  entity.ParticipantCount,
	}
}
