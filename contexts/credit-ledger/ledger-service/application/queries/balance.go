package queries

import (
	"context"
	"strings"

	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
)

type BalanceUseCase struct {
	Reader ports.Reader
}

func (uc BalanceUseCase) GetBalance(ctx context.Context, subjectID string) (int64, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return 0, domainerrors.ErrInvalidSubjectID
	}
	subject, err := uc.Reader.GetSubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	return subject.Balance, nil
}
