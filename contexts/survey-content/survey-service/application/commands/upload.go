package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pollstack/contexts/survey-content/survey-service/application"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
)

type UploadCommand struct {
	Kind             entities.Kind
	AuthorID         string
	Title            string
	Deadline         *time.Time
	EstimatedMinutes int
	ExtraCredit      int64
	WinnerCount      int
	AgeScreening     bool
	// IdempotencyKey, when set, fixes the entity id so a retried upload
	// finds what its earlier attempt committed.
	IdempotencyKey string
}

type UploadResult struct {
	Entity  entities.Entity
	Charged int64
	Receipt *ports.PostingReceipt
	// Replayed is set when the keyed upload had fully committed before.
	Replayed bool
	// Repaired is set when the charge had committed without the entity and
	// the entity was rebuilt from it.
	Repaired bool
}

// UploadUseCase publishes a research or a vote and charges its author in
// the same unit over the users store and the entity store.
type UploadUseCase struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Ledger     ports.Ledger
	Timers     ports.Timers
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc UploadUseCase) Execute(ctx context.Context, cmd UploadCommand) (UploadResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.Clock.Now().UTC()
	if err := validateUpload(&cmd, now); err != nil {
		return UploadResult{}, err
	}

	entityID, err := uc.entityID(ctx, cmd)
	if err != nil {
		return UploadResult{}, err
	}
	entity := entities.Entity{
		EntityID:          entityID,
		Kind:              cmd.Kind,
		Title:             cmd.Title,
		AuthorID:          cmd.AuthorID,
		Deadline:          cmd.Deadline,
		ExtraCredit:       cmd.ExtraCredit,
		WinnerCount:       cmd.WinnerCount,
		DistributionState: entities.InitialDistributionState(cmd.ExtraCredit, cmd.WinnerCount),
		PulledUpAt:        &now,
		EstimatedMinutes:  cmd.EstimatedMinutes,
		AgeScreening:      cmd.AgeScreening,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var cost int64
	kind := ports.PostingOther
	if cmd.Kind == entities.KindResearch {
		cost = entities.UploadCost(cmd.EstimatedMinutes, cmd.ExtraCredit, cmd.WinnerCount, cmd.AgeScreening)
		kind = ports.PostingResearchUpload
	} else {
		cost = entities.ExtraCreditPool(cmd.ExtraCredit, cmd.WinnerCount)
	}

	var result UploadResult
	stores := []ports.StoreID{ports.StoreUsers, ports.StoreFor(cmd.Kind)}
	err = uc.UnitOfWork.Run(ctx, stores, func(ctx context.Context, sessions ports.Sessions) error {
		result = UploadResult{Entity: entity, Charged: cost}
		if cmd.IdempotencyKey != "" {
			existing, err := uc.Repository.LoadEntity(ctx, sessions, cmd.Kind, entityID)
			switch {
			case err == nil:
				if !sameUpload(existing, cmd) {
					return domainerrors.ErrIdempotencyConflict
				}
				receipt, paid, err := uc.Ledger.FindPosting(ctx, sessions, cmd.AuthorID, entityID, kind)
				if err != nil {
					return err
				}
				result = UploadResult{Entity: existing, Charged: cost, Replayed: true}
				if paid {
					result.Receipt = &receipt
				}
				return nil
			case !errors.Is(err, domainerrors.ErrEntityNotFound):
				return err
			}
		}

		if err := uc.Repository.CreateEntity(ctx, sessions, entity); err != nil {
			return err
		}
		if cost == 0 {
			return nil
		}
		if cmd.IdempotencyKey != "" {
			receipt, paid, err := uc.Ledger.FindPosting(ctx, sessions, cmd.AuthorID, entityID, kind)
			if err != nil {
				return err
			}
			if paid {
				result.Receipt = &receipt
				result.Repaired = true
				return nil
			}
		}
		receipt, err := uc.Ledger.Post(ctx, sessions, ports.Posting{
			SubjectID: cmd.AuthorID,
			Delta:     -cost,
			Kind:      kind,
			Reason:    cmd.Title,
			Reference: entityID,
		})
		if err != nil {
			return err
		}
		result.Receipt = &receipt
		return nil
	})
	if err != nil {
		logger.Warn("entity upload failed",
			"event", "survey_entity_upload_failed",
			"module", "survey-content/survey-service",
			"layer", "application",
			"kind", string(cmd.Kind),
			"author_id", cmd.AuthorID,
			"cost", cost,
			"error", err.Error(),
		)
		return UploadResult{}, err
	}

	stored := result.Entity
	if uc.Timers != nil && stored.Deadline != nil && !stored.Closed {
		uc.Timers.Schedule(stored.Kind, stored.EntityID, *stored.Deadline)
	}
	logger.Info("entity uploaded",
		"event", "survey_entity_uploaded",
		"module", "survey-content/survey-service",
		"layer", "application",
		"entity_id", stored.EntityID,
		"kind", string(stored.Kind),
		"author_id", stored.AuthorID,
		"cost", cost,
		"distribution_state", string(stored.DistributionState),
		"replayed", result.Replayed,
		"repaired", result.Repaired,
	)
	return result, nil
}

func (uc UploadUseCase) entityID(ctx context.Context, cmd UploadCommand) (string, error) {
	if cmd.IdempotencyKey != "" {
		return entities.UploadEntityID(cmd.AuthorID, cmd.IdempotencyKey), nil
	}
	id, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return "", fmt.Errorf("generate entity id: %w", err)
	}
	return id, nil
}

// sameUpload reports whether a stored entity was created by cmd. Fields the
// author may change later (pool, deadline) are not compared.
func sameUpload(existing entities.Entity, cmd UploadCommand) bool {
	return existing.Kind == cmd.Kind &&
		existing.AuthorID == cmd.AuthorID &&
		existing.EstimatedMinutes == cmd.EstimatedMinutes &&
		existing.AgeScreening == cmd.AgeScreening
}

func validateUpload(cmd *UploadCommand, now time.Time) error {
	if !cmd.Kind.Valid() {
		return fmt.Errorf("%w: %q", domainerrors.ErrInvalidEntityKind, cmd.Kind)
	}
	authorID, err := normalizeSubject(cmd.AuthorID)
	if err != nil {
		return err
	}
	cmd.AuthorID = authorID
	cmd.IdempotencyKey = strings.TrimSpace(cmd.IdempotencyKey)
	cmd.Title = strings.TrimSpace(cmd.Title)
	if cmd.Title == "" {
		return domainerrors.ErrInvalidTitle
	}
	if cmd.Kind == entities.KindResearch && cmd.EstimatedMinutes <= 0 {
		return domainerrors.ErrInvalidEstimatedMinutes
	}
	if cmd.ExtraCredit < 0 || cmd.WinnerCount < 0 {
		return domainerrors.ErrInvalidExtraCredit
	}
	if cmd.Deadline != nil {
		deadline := cmd.Deadline.UTC()
		if !deadline.After(now) {
			return domainerrors.ErrInvalidDeadline
		}
		cmd.Deadline = &deadline
	}
	return nil
}
