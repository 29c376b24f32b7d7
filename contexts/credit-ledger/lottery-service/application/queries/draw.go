package queries

import (
	"context"
	"strings"

	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/lottery-service/domain/errors"
	"pollstack/contexts/credit-ledger/lottery-service/ports"
)

type DrawUseCase struct {
	Draws ports.DrawReader
}

func (uc DrawUseCase) GetDraw(ctx context.Context, kind entities.EntityKind, entityID string) (entities.Draw, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return entities.Draw{}, domainerrors.ErrInvalidEntityID
	}
	if !kind.Valid() {
		return entities.Draw{}, domainerrors.ErrInvalidEntityKind
	}
	return uc.Draws.GetDraw(ctx, kind, entityID)
}
