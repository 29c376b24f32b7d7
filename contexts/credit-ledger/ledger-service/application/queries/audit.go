package queries

import (
	"context"
	"log/slog"
	"strings"

	"pollstack/contexts/credit-ledger/ledger-service/application"
	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
)

// AuditUseCase replays ledger history against cached balances.
type AuditUseCase struct {
	Reader ports.Reader
	Logger *slog.Logger
}

func (uc AuditUseCase) Audit(ctx context.Context, subjectID string) (entities.AuditReport, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return entities.AuditReport{}, domainerrors.ErrInvalidSubjectID
	}
	subject, err := uc.Reader.GetSubject(ctx, subjectID)
	if err != nil {
		return entities.AuditReport{}, err
	}
	entries, err := uc.Reader.ListAllEntries(ctx, subjectID)
	if err != nil {
		return entities.AuditReport{}, err
	}

	report := entities.Replay(subject, entries)
	if !report.Consistent() {
		application.ResolveLogger(uc.Logger).Error("ledger audit found drift",
			"event", "ledger_audit_drift",
			"module", "credit-ledger/ledger-service",
			"layer", "application",
			"subject_id", subjectID,
			"cached_balance", report.CachedBalance,
			"replayed_balance", report.ReplayedBalance,
			"violations", len(report.Violations),
		)
	}
	return report, nil
}

// AuditAll audits every subject and returns only inconsistent reports.
func (uc AuditUseCase) AuditAll(ctx context.Context) ([]entities.AuditReport, int, error) {
	subjectIDs, err := uc.Reader.ListSubjectIDs(ctx)
	if err != nil {
		return nil, 0, err
	}
	var drifted []entities.AuditReport
	for _, subjectID := range subjectIDs {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		report, err := uc.Audit(ctx, subjectID)
		if err != nil {
			return nil, 0, err
		}
		if !report.Consistent() {
			drifted = append(drifted, report)
		}
	}
	return drifted, len(subjectIDs), nil
}
