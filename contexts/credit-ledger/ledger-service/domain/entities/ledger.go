package entities

import (
	"fmt"
	"math"
	"time"

	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
)

type EntryKind string

const (
	EntryKindSignupEvent              EntryKind = "SIGNUP_EVENT"
	EntryKindResearchParticipate      EntryKind = "RESEARCH_PARTICIPATE"
	EntryKindResearchUpload           EntryKind = "RESEARCH_UPLOAD"
	EntryKindResearchPullUp           EntryKind = "RESEARCH_PULLUP"
	EntryKindResearchEdit             EntryKind = "RESEARCH_EDIT"
	EntryKindDeletedResearchReward    EntryKind = "DELETED_RESEARCH_PARTICIPATE"
	EntryKindWinResearchExtraCredit   EntryKind = "WIN_RESEARCH_EXTRA_CREDIT"
	EntryKindWinVoteExtraCredit       EntryKind = "WIN_VOTE_EXTRA_CREDIT"
	EntryKindCreditCompensation       EntryKind = "CREDIT_COMPENSATION"
	EntryKindInquireVoteStat          EntryKind = "INQUIRE_VOTE_STAT"
	EntryKindProductExchange          EntryKind = "PRODUCT_EXCHANGE"
	EntryKindAdministrativeAdjustment EntryKind = "ADMIN_ADJUSTMENT"
	EntryKindOther                    EntryKind = "ETC"
)

var knownKinds = map[EntryKind]struct{}{
	EntryKindSignupEvent:              {},
	EntryKindResearchParticipate:      {},
	EntryKindResearchUpload:           {},
	EntryKindResearchPullUp:           {},
	EntryKindResearchEdit:             {},
	EntryKindDeletedResearchReward:    {},
	EntryKindWinResearchExtraCredit:   {},
	EntryKindWinVoteExtraCredit:       {},
	EntryKindCreditCompensation:       {},
	EntryKindInquireVoteStat:          {},
	EntryKindProductExchange:          {},
	EntryKindAdministrativeAdjustment: {},
	EntryKindOther:                    {},
}

func (k EntryKind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// Subject owns the cached balance. Version increases by one per appended
// entry and doubles as the optimistic concurrency token.
type Subject struct {
	SubjectID string
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is an immutable balance change. Sequence equals the subject
// version produced by the append.
type Entry struct {
	EntryID          string
	SubjectID        string
	Sequence         int64
	Delta            int64
	ResultingBalance int64
	Kind             EntryKind
	Reason           string
	RelatedEntityID  string
	Administrative   bool
	CreatedAt        time.Time
}

// Apply returns the subject after delta and the entry recording it.
func (s Subject) Apply(entry Entry, now time.Time) (Subject, Entry, error) {
	if addOverflows(s.Balance, entry.Delta) {
		return Subject{}, Entry{}, fmt.Errorf("%w: balance %d, delta %d", domainerrors.ErrBalanceOverflow, s.Balance, entry.Delta)
	}
	resulting := s.Balance + entry.Delta
	if resulting < 0 && !entry.Administrative {
		return Subject{}, Entry{}, fmt.Errorf("%w: balance %d, delta %d", domainerrors.ErrInsufficientBalance, s.Balance, entry.Delta)
	}
	next := s
	next.Balance = resulting
	next.Version = s.Version + 1
	next.UpdatedAt = now

	entry.SubjectID = s.SubjectID
	entry.Sequence = next.Version
	entry.ResultingBalance = resulting
	entry.CreatedAt = now
	return next, entry, nil
}

func addOverflows(a int64, b int64) bool {
	if b > 0 {
		return a > math.MaxInt64-b
	}
	return a < math.MinInt64-b
}

type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

type HistoryQuery struct {
	SubjectID     string
	CursorEntryID string
	PageSize      int
	Direction     Direction
}

type HistoryPage struct {
	Entries    []Entry
	NextCursor string
	HasMore    bool
}

type AuditReport struct {
	SubjectID       string
	CachedBalance   int64
	CachedVersion   int64
	ReplayedBalance int64
	EntryCount      int
	Violations      []string
}

func (r AuditReport) Consistent() bool {
	return len(r.Violations) == 0
}

// Replay folds entries, ordered by sequence, and compares the result with
// the subject's cached balance and version.
func Replay(subject Subject, entries []Entry) AuditReport {
	report := AuditReport{
		SubjectID:     subject.SubjectID,
		CachedBalance: subject.Balance,
		CachedVersion: subject.Version,
		EntryCount:    len(entries),
	}

	var balance int64
	for i, entry := range entries {
		expectedSequence := int64(i + 1)
		if entry.Sequence != expectedSequence {
			report.Violations = append(report.Violations,
				fmt.Sprintf("entry %s has sequence %d, expected %d", entry.EntryID, entry.Sequence, expectedSequence))
		}
		balance += entry.Delta
		if entry.ResultingBalance != balance {
			report.Violations = append(report.Violations,
				fmt.Sprintf("entry %s resulting balance %d, replay gives %d", entry.EntryID, entry.ResultingBalance, balance))
		}
		if entry.ResultingBalance < 0 && !entry.Administrative {
			report.Violations = append(report.Violations,
				fmt.Sprintf("entry %s leaves negative balance %d", entry.EntryID, entry.ResultingBalance))
		}
	}
	report.ReplayedBalance = balance

	if balance != subject.Balance {
		report.Violations = append(report.Violations,
			fmt.Sprintf("cached balance %d differs from replayed %d", subject.Balance, balance))
	}
	if int64(len(entries)) != subject.Version {
		report.Violations = append(report.Violations,
			fmt.Sprintf("cached version %d differs from entry count %d", subject.Version, len(entries)))
	}
	return report
}
