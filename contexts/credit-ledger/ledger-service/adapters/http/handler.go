package httpadapter

import (
	"context"
	"log/slog"

	"pollstack/contexts/credit-ledger/ledger-service/application/commands"
	"pollstack/contexts/credit-ledger/ledger-service/application/queries"
	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	httptransport "pollstack/contexts/credit-ledger/ledger-service/transport/http"
)

type Handler struct {
	Balances    queries.BalanceUseCase
	History     queries.HistoryUseCase
	Audit       queries.AuditUseCase
	Adjustments commands.AdjustUseCase
	Subjects    commands.OpenSubjectUseCase
	Logger      *slog.Logger
}

func (h Handler) OpenSubjectHandler(ctx context.Context, subjectID string) (httptransport.BalanceResponse, error) {
	subject, err := h.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: subjectID})
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{
		SubjectID: subject.SubjectID,
		Balance:   subject.Balance,
	}, nil
}

func (h Handler) BalanceHandler(ctx context.Context, subjectID string) (httptransport.BalanceResponse, error) {
	balance, err := h.Balances.GetBalance(ctx, subjectID)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{
		SubjectID: subjectID,
		Balance:   balance,
	}, nil
}

func (h Handler) HistoryHandler(
	ctx context.Context,
	subjectID string,
	req httptransport.HistoryRequest,
) (httptransport.HistoryResponse, error) {
	page, err := h.History.GetHistoryPage(ctx, entities.HistoryQuery{
		SubjectID:     subjectID,
		CursorEntryID: req.Cursor,
		PageSize:      req.Limit,
		Direction:     entities.Direction(req.Direction),
	})
	if err != nil {
		return httptransport.HistoryResponse{}, err
	}
	resp := httptransport.HistoryResponse{
		SubjectID:  subjectID,
		Entries:    make([]httptransport.EntryResponse, 0, len(page.Entries)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, entry := range page.Entries {
		resp.Entries = append(resp.Entries, toEntryResponse(entry))
	}
	return resp, nil
}

func (h Handler) AdjustHandler(
	ctx context.Context,
	actorID string,
	subjectID string,
	req httptransport.AdjustRequest,
) (httptransport.EntryResponse, error) {
	entry, err := h.Adjustments.Execute(ctx, commands.AdjustCommand{
		SubjectID:    subjectID,
		Delta:        req.Delta,
		Reason:       req.Reason,
		ActorID:      actorID,
		Compensation: req.Compensation,
	})
	if err != nil {
		return httptransport.EntryResponse{}, err
	}
	return toEntryResponse(entry), nil
}

func (h Handler) AuditHandler(ctx context.Context, subjectID string) (httptransport.AuditResponse, error) {
	report, err := h.Audit.Audit(ctx, subjectID)
	if err != nil {
		return httptransport.AuditResponse{}, err
	}
	return httptransport.AuditResponse{
		SubjectID:       report.SubjectID,
		CachedBalance:   report.CachedBalance,
		ReplayedBalance: report.ReplayedBalance,
		EntryCount:      report.EntryCount,
		Consistent:      report.Consistent(),
		Violations:      report.Violations,
	}, nil
}

func toEntryResponse(entry entities.Entry) httptransport.EntryResponse {
	return httptransport.EntryResponse{
		EntryID:          entry.EntryID,
		Sequence:         entry.Sequence,
		Delta:            entry.Delta,
		ResultingBalance: entry.ResultingBalance,
		Kind:             string(entry.Kind),
		Reason:           entry.Reason,
		RelatedEntityID:  entry.RelatedEntityID,
		Administrative:   entry.Administrative,
		CreatedAt:        entry.CreatedAt,
	}
}
