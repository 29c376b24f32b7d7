package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"pollstack/contexts/credit-ledger/ledger-service/application"
	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
)

type OpenSubjectCommand struct {
	SubjectID string
}

// OpenSubjectUseCase creates a subject and grants the sign-up credit in one unit.
type OpenSubjectUseCase struct {
	UnitOfWork   ports.UnitOfWork
	Repository   ports.Repository
	Appender     AppendUseCase
	Clock        ports.Clock
	SignupCredit int64
	Logger       *slog.Logger
}

func (uc OpenSubjectUseCase) Execute(ctx context.Context, cmd OpenSubjectCommand) (entities.Subject, error) {
	logger := application.ResolveLogger(uc.Logger)
	subjectID := strings.TrimSpace(cmd.SubjectID)
	if subjectID == "" {
		return entities.Subject{}, domainerrors.ErrInvalidSubjectID
	}

	var opened entities.Subject
	err := uc.UnitOfWork.Run(ctx, []ports.StoreID{ports.StoreUsers}, func(ctx context.Context, sessions ports.Sessions) error {
		_, err := uc.Repository.LoadSubject(ctx, sessions, subjectID)
		switch {
		case err == nil:
			return domainerrors.ErrSubjectAlreadyExists
		case !errors.Is(err, domainerrors.ErrSubjectNotFound):
			return err
		}

		now := uc.Clock.Now().UTC()
		subject := entities.Subject{
			SubjectID: subjectID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := uc.Repository.CreateSubject(ctx, sessions, subject); err != nil {
			return err
		}
		opened = subject

		if uc.SignupCredit > 0 {
			entry, err := uc.Appender.AppendEntry(ctx, sessions, AppendCommand{
				SubjectID: subjectID,
				Delta:     uc.SignupCredit,
				Kind:      entities.EntryKindSignupEvent,
				Reason:    "sign-up credit",
			})
			if err != nil {
				return err
			}
			opened.Balance = entry.ResultingBalance
			opened.Version = entry.Sequence
		}
		return nil
	})
	if err != nil {
		return entities.Subject{}, err
	}

	logger.Info("subject opened",
		"event", "ledger_subject_opened",
		"module", "credit-ledger/ledger-service",
		"layer", "application",
		"subject_id", subjectID,
		"signup_credit", uc.SignupCredit,
	)
	return opened, nil
}
