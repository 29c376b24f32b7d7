package queries

import (
	"context"
	"strings"

	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type EntityUseCase struct {
	Reader ports.Reader
}

func (uc EntityUseCase) GetEntity(ctx context.Context, kind entities.Kind, entityID string) (entities.Entity, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return entities.Entity{}, domainerrors.ErrInvalidEntityID
	}
	if !kind.Valid() {
		return entities.Entity{}, domainerrors.ErrInvalidEntityKind
	}
	return uc.Reader.GetEntity(ctx, kind, entityID)
}

func (uc EntityUseCase) ListParticipations(ctx context.Context, kind entities.Kind, entityID string) ([]entities.Participation, error) {
	if _, err := uc.GetEntity(ctx, kind, entityID); err != nil {
		return nil, err
	}
	return uc.Reader.ListEntityParticipations(ctx, kind, strings.TrimSpace(entityID))
}
