package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pollstack/contexts/credit-ledger/ledger-service/application"
	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
)

type AppendCommand struct {
	SubjectID       string
	Delta           int64
	Kind            entities.EntryKind
	Reason          string
	RelatedEntityID string
	Administrative  bool
}

// AppendUseCase writes ledger entries inside a caller-owned unit of work.
// It must run with the users store session open.
type AppendUseCase struct {
	Repository ports.Repository
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func (uc AppendUseCase) AppendEntry(ctx context.Context, sessions ports.Sessions, cmd AppendCommand) (entities.Entry, error) {
	logger := application.ResolveLogger(uc.Logger)
	cmd.SubjectID = strings.TrimSpace(cmd.SubjectID)
	if err := validateAppend(cmd); err != nil {
		return entities.Entry{}, err
	}

	subject, err := uc.Repository.LoadSubject(ctx, sessions, cmd.SubjectID)
	if err != nil {
		return entities.Entry{}, err
	}

	entryID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Entry{}, fmt.Errorf("generate entry id: %w", err)
	}

	next, entry, err := subject.Apply(entities.Entry{
		EntryID:         entryID,
		Delta:           cmd.Delta,
		Kind:            cmd.Kind,
		Reason:          strings.TrimSpace(cmd.Reason),
		RelatedEntityID: strings.TrimSpace(cmd.RelatedEntityID),
		Administrative:  cmd.Administrative,
	}, uc.Clock.Now().UTC())
	if err != nil {
		logger.Info("ledger append rejected",
			"event", "ledger_append_rejected",
			"module", "credit-ledger/ledger-service",
			"layer", "application",
			"subject_id", cmd.SubjectID,
			"kind", string(cmd.Kind),
			"delta", cmd.Delta,
			"balance", subject.Balance,
		)
		return entities.Entry{}, err
	}

	if err := uc.Repository.UpdateBalance(ctx, sessions, next, subject.Version); err != nil {
		return entities.Entry{}, err
	}
	if err := uc.Repository.InsertEntry(ctx, sessions, entry); err != nil {
		return entities.Entry{}, err
	}

	if uc.Metrics != nil {
		uc.Metrics.LedgerAppended(string(entry.Kind))
	}
	logger.Debug("ledger entry staged",
		"event", "ledger_entry_staged",
		"module", "credit-ledger/ledger-service",
		"layer", "application",
		"subject_id", entry.SubjectID,
		"entry_id", entry.EntryID,
		"sequence", entry.Sequence,
		"kind", string(entry.Kind),
		"delta", entry.Delta,
		"resulting_balance", entry.ResultingBalance,
	)
	return entry, nil
}

// AppendMany applies cmds strictly in order; the first failure stops the batch.
func (uc AppendUseCase) AppendMany(ctx context.Context, sessions ports.Sessions, cmds []AppendCommand) ([]entities.Entry, error) {
	entries := make([]entities.Entry, 0, len(cmds))
	for i, cmd := range cmds {
		entry, err := uc.AppendEntry(ctx, sessions, cmd)
		if err != nil {
			return nil, fmt.Errorf("append %d of %d: %w", i+1, len(cmds), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func validateAppend(cmd AppendCommand) error {
	if cmd.SubjectID == "" {
		return domainerrors.ErrInvalidSubjectID
	}
	if !cmd.Kind.Valid() {
		return fmt.Errorf("%w: %q", domainerrors.ErrInvalidEntryKind, cmd.Kind)
	}
	if cmd.Delta == 0 {
		return domainerrors.ErrZeroDelta
	}
	return nil
}
