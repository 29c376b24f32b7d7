package commands

import (
	"context"
	"log/slog"
	"strings"

	"pollstack/contexts/credit-ledger/ledger-service/application"
	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
)

type AdjustCommand struct {
	SubjectID string
	Delta     int64
	Reason    string
	ActorID   string
	// Compensation records the change as CREDIT_COMPENSATION instead of ADMIN_ADJUSTMENT.
	Compensation bool
}

// AdjustUseCase applies an operator-issued balance change. Administrative
// entries may take the balance below zero.
type AdjustUseCase struct {
	UnitOfWork ports.UnitOfWork
	Appender   AppendUseCase
	Logger     *slog.Logger
}

func (uc AdjustUseCase) Execute(ctx context.Context, cmd AdjustCommand) (entities.Entry, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ActorID) == "" || strings.TrimSpace(cmd.Reason) == "" {
		return entities.Entry{}, domainerrors.ErrInvalidAdjustment
	}

	kind := entities.EntryKindAdministrativeAdjustment
	if cmd.Compensation {
		kind = entities.EntryKindCreditCompensation
	}

	var entry entities.Entry
	err := uc.UnitOfWork.Run(ctx, []ports.StoreID{ports.StoreUsers}, func(ctx context.Context, sessions ports.Sessions) error {
		appended, err := uc.Appender.AppendEntry(ctx, sessions, AppendCommand{
			SubjectID:      cmd.SubjectID,
			Delta:          cmd.Delta,
			Kind:           kind,
			Reason:         cmd.Reason,
			Administrative: true,
		})
		if err != nil {
			return err
		}
		entry = appended
		return nil
	})
	if err != nil {
		return entities.Entry{}, err
	}

	logger.Warn("administrative ledger adjustment",
		"event", "ledger_admin_adjustment",
		"module", "credit-ledger/ledger-service",
		"layer", "application",
		"subject_id", entry.SubjectID,
		"actor_id", strings.TrimSpace(cmd.ActorID),
		"delta", entry.Delta,
		"resulting_balance", entry.ResultingBalance,
		"kind", string(entry.Kind),
	)
	return entry, nil
}
