package bridges

import (
	"context"

	exchangeports "pollstack/contexts/commerce/exchange-service/ports"
	ledgercommands "pollstack/contexts/credit-ledger/ledger-service/application/commands"
	ledgerentities "pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	ledgerports "pollstack/contexts/credit-ledger/ledger-service/ports"
	lotteryentities "pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	lotteryports "pollstack/contexts/credit-ledger/lottery-service/ports"
	surveyports "pollstack/contexts/survey-content/survey-service/ports"
)

// LotteryLedger credits lottery winners through the ledger append path.
type LotteryLedger struct {
	Appender   ledgercommands.AppendUseCase
	Repository ledgerports.Repository
}

func winKind(kind lotteryentities.EntityKind) ledgerentities.EntryKind {
	if kind == lotteryentities.EntityKindVote {
		return ledgerentities.EntryKindWinVoteExtraCredit
	}
	return ledgerentities.EntryKindWinResearchExtraCredit
}

func (l LotteryLedger) CreditWinner(ctx context.Context, sessions lotteryports.Sessions, req lotteryports.PayoutRequest) (lotteryentities.Payout, error) {
	entry, err := l.Appender.AppendEntry(ctx, sessions, ledgercommands.AppendCommand{
		SubjectID:       req.SubjectID,
		Delta:           req.Amount,
		Kind:            winKind(req.EntityKind),
		Reason:          req.Reason,
		RelatedEntityID: req.EntityID,
	})
	if err != nil {
		return lotteryentities.Payout{}, err
	}
	return payoutFromEntry(entry), nil
}

func (l LotteryLedger) FindPayout(
	ctx context.Context,
	sessions lotteryports.Sessions,
	subjectID string,
	entityID string,
	kind lotteryentities.EntityKind,
) (lotteryentities.Payout, bool, error) {
	entry, found, err := l.Repository.FindEntryByRelation(ctx, sessions, subjectID, entityID, winKind(kind))
	if err != nil || !found {
		return lotteryentities.Payout{}, false, err
	}
	return payoutFromEntry(entry), true, nil
}

func payoutFromEntry(entry ledgerentities.Entry) lotteryentities.Payout {
	return lotteryentities.Payout{
		SubjectID:        entry.SubjectID,
		EntryID:          entry.EntryID,
		Amount:           entry.Delta,
		ResultingBalance: entry.ResultingBalance,
	}
}

// SurveyLedger posts survey charges and rewards. Posting kinds share the
// ledger's entry kind names and the posting reference is the entry relation.
type SurveyLedger struct {
	Appender   ledgercommands.AppendUseCase
	Repository ledgerports.Repository
}

func (l SurveyLedger) Post(ctx context.Context, sessions surveyports.Sessions, posting surveyports.Posting) (surveyports.PostingReceipt, error) {
	entry, err := l.Appender.AppendEntry(ctx, sessions, ledgercommands.AppendCommand{
		SubjectID:       posting.SubjectID,
		Delta:           posting.Delta,
		Kind:            ledgerentities.EntryKind(posting.Kind),
		Reason:          posting.Reason,
		RelatedEntityID: posting.Reference,
	})
	if err != nil {
		return surveyports.PostingReceipt{}, err
	}
	return receiptFromEntry(entry), nil
}

func (l SurveyLedger) FindPosting(
	ctx context.Context,
	sessions surveyports.Sessions,
	subjectID string,
	reference string,
	kind surveyports.PostingKind,
) (surveyports.PostingReceipt, bool, error) {
	entry, found, err := l.Repository.FindEntryByRelation(ctx, sessions, subjectID, reference, ledgerentities.EntryKind(kind))
	if err != nil || !found {
		return surveyports.PostingReceipt{}, false, err
	}
	return receiptFromEntry(entry), true, nil
}

func receiptFromEntry(entry ledgerentities.Entry) surveyports.PostingReceipt {
	return surveyports.PostingReceipt{
		EntryID:          entry.EntryID,
		Delta:            entry.Delta,
		ResultingBalance: entry.ResultingBalance,
	}
}

// ExchangeLedger debits product exchanges and finds earlier debits by the
// exchange reference stored as the entry relation.
type ExchangeLedger struct {
	Appender   ledgercommands.AppendUseCase
	Repository ledgerports.Repository
}

func (l ExchangeLedger) Charge(ctx context.Context, sessions exchangeports.Sessions, charge exchangeports.Charge) (exchangeports.Receipt, error) {
	entry, err := l.Appender.AppendEntry(ctx, sessions, ledgercommands.AppendCommand{
		SubjectID:       charge.SubjectID,
		Delta:           -charge.Amount,
		Kind:            ledgerentities.EntryKindProductExchange,
		Reason:          charge.Reason,
		RelatedEntityID: charge.Reference,
	})
	if err != nil {
		return exchangeports.Receipt{}, err
	}
	return exchangeports.Receipt{EntryID: entry.EntryID, ResultingBalance: entry.ResultingBalance}, nil
}

func (l ExchangeLedger) FindCharge(ctx context.Context, sessions exchangeports.Sessions, subjectID string, reference string) (exchangeports.Receipt, bool, error) {
	entry, found, err := l.Repository.FindEntryByRelation(ctx, sessions, subjectID, reference, ledgerentities.EntryKindProductExchange)
	if err != nil || !found {
		return exchangeports.Receipt{}, false, err
	}
	return exchangeports.Receipt{EntryID: entry.EntryID, ResultingBalance: entry.ResultingBalance}, true, nil
}

var (
	_ lotteryports.Ledger  = LotteryLedger{}
	_ surveyports.Ledger   = SurveyLedger{}
	_ exchangeports.Ledger = ExchangeLedger{}
)
