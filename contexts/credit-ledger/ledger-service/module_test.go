package ledgerservice_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ledgerservice "pollstack/contexts/credit-ledger/ledger-service"
	"pollstack/contexts/credit-ledger/ledger-service/application/commands"
	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/txcoord"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct {
	next atomic.Int64
}

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	return fmt.Sprintf("entry-%04d", s.next.Add(1)), nil
}

type harness struct {
	module      ledgerservice.Module
	coordinator *txcoord.Coordinator
	users       *memstore.Store
}

func newHarness(t *testing.T, signupCredit int64) harness {
	t.Helper()
	users := memstore.New(txcoord.StoreUsers)
	coordinator := txcoord.New([]txcoord.Store{users}, txcoord.WithPolicy(txcoord.Policy{
		MaxAttempts: 200,
		Budget:      20 * time.Second,
		BaseBackoff: time.Microsecond,
		MaxBackoff:  time.Millisecond,
	}))
	clock := fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	module := ledgerservice.NewInMemoryModule(users, coordinator, clock, &sequenceIDs{}, signupCredit, nil)
	return harness{module: module, coordinator: coordinator, users: users}
}

func (h harness) append(ctx context.Context, cmd commands.AppendCommand) (entities.Entry, error) {
	return txcoord.RunAtomic(ctx, h.coordinator, []txcoord.StoreID{txcoord.StoreUsers},
		func(ctx context.Context, sessions txcoord.Sessions) (entities.Entry, error) {
			return h.module.Appender.AppendEntry(ctx, sessions, cmd)
		})
}

func TestOpenSubjectGrantsSignupCredit(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	subject, err := h.module.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: "u-1"})
	if err != nil {
		t.Fatalf("open subject: %v", err)
	}
	if subject.Balance != 10 || subject.Version != 1 {
		t.Fatalf("unexpected subject after sign-up: %+v", subject)
	}

	balance, err := h.module.Balances.GetBalance(ctx, "u-1")
	if err != nil || balance != 10 {
		t.Fatalf("expected balance 10, got %d err=%v", balance, err)
	}

	if _, err := h.module.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: "u-1"}); !errors.Is(err, domainerrors.ErrSubjectAlreadyExists) {
		t.Fatalf("expected ErrSubjectAlreadyExists, got %v", err)
	}
}

func TestAppendRejectsOverdraftWithoutTrace(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	if _, err := h.module.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: "u-1"}); err != nil {
		t.Fatalf("open subject: %v", err)
	}

	_, err := h.append(ctx, commands.AppendCommand{
		SubjectID: "u-1",
		Delta:     -6,
		Kind:      entities.EntryKindResearchUpload,
		Reason:    "upload",
	})
	if !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	page, err := h.module.History.GetHistoryPage(ctx, entities.HistoryQuery{SubjectID: "u-1"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].Kind != entities.EntryKindSignupEvent {
		t.Fatalf("expected only the sign-up entry, got %+v", page.Entries)
	}
}

func TestAppendValidatesCommand(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	cases := []struct {
		name string
		cmd  commands.AppendCommand
		want error
	}{
		{"missing subject", commands.AppendCommand{Delta: 1, Kind: entities.EntryKindOther}, domainerrors.ErrInvalidSubjectID},
		{"unknown kind", commands.AppendCommand{SubjectID: "u-1", Delta: 1, Kind: "BONUS"}, domainerrors.ErrInvalidEntryKind},
		{"zero delta", commands.AppendCommand{SubjectID: "u-1", Kind: entities.EntryKindOther}, domainerrors.ErrZeroDelta},
		{"unknown subject", commands.AppendCommand{SubjectID: "ghost", Delta: 1, Kind: entities.EntryKindOther}, domainerrors.ErrSubjectNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.append(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAdjustAllowsNegativeBalance(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	if _, err := h.module.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: "u-1"}); err != nil {
		t.Fatalf("open subject: %v", err)
	}

	entry, err := h.module.Adjustments.Execute(ctx, commands.AdjustCommand{
		SubjectID: "u-1",
		Delta:     -8,
		Reason:    "chargeback",
		ActorID:   "admin-1",
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if entry.ResultingBalance != -5 || !entry.Administrative || entry.Kind != entities.EntryKindAdministrativeAdjustment {
		t.Fatalf("unexpected adjustment entry: %+v", entry)
	}

	report, err := h.module.Audit.Audit(ctx, "u-1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !report.Consistent() {
		t.Fatalf("expected consistent ledger, got %v", report.Violations)
	}

	if _, err := h.module.Adjustments.Execute(ctx, commands.AdjustCommand{SubjectID: "u-1", Delta: 1}); !errors.Is(err, domainerrors.ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment, got %v", err)
	}
}

func TestAppendManyIsAllOrNothing(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	if _, err := h.module.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: "u-1"}); err != nil {
		t.Fatalf("open subject: %v", err)
	}

	err := h.coordinator.Run(ctx, []txcoord.StoreID{txcoord.StoreUsers}, func(ctx context.Context, sessions txcoord.Sessions) error {
		_, err := h.module.Appender.AppendMany(ctx, sessions, []commands.AppendCommand{
			{SubjectID: "u-1", Delta: -4, Kind: entities.EntryKindResearchPullUp},
			{SubjectID: "u-1", Delta: -4, Kind: entities.EntryKindResearchPullUp},
			{SubjectID: "u-1", Delta: -4, Kind: entities.EntryKindResearchPullUp},
		})
		return err
	})
	if !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("expected third append to overdraw, got %v", err)
	}

	balance, _ := h.module.Balances.GetBalance(ctx, "u-1")
	if balance != 10 {
		t.Fatalf("aborted unit must leave balance untouched, got %d", balance)
	}
}

func TestConcurrentAppendsSerializePerSubject(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	if _, err := h.module.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: "u-1"}); err != nil {
		t.Fatalf("open subject: %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.append(ctx, commands.AppendCommand{
				SubjectID: "u-1",
				Delta:     int64(i + 1),
				Kind:      entities.EntryKindResearchParticipate,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append failed: %v", err)
		}
	}

	balance, _ := h.module.Balances.GetBalance(ctx, "u-1")
	if balance != writers*(writers+1)/2 {
		t.Fatalf("expected balance %d, got %d", writers*(writers+1)/2, balance)
	}
	report, err := h.module.Audit.Audit(ctx, "u-1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !report.Consistent() || report.EntryCount != writers {
		t.Fatalf("replay mismatch: %+v", report)
	}
}

func TestHistoryPagination(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	if _, err := h.module.Subjects.Execute(ctx, commands.OpenSubjectCommand{SubjectID: "u-1"}); err != nil {
		t.Fatalf("open subject: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := h.append(ctx, commands.AppendCommand{SubjectID: "u-1", Delta: 1, Kind: entities.EntryKindOther}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	first, err := h.module.History.GetHistoryPage(ctx, entities.HistoryQuery{SubjectID: "u-1", PageSize: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Entries) != 2 || !first.HasMore || first.Entries[0].Sequence != 1 {
		t.Fatalf("unexpected first page: %+v", first)
	}

	second, err := h.module.History.GetHistoryPage(ctx, entities.HistoryQuery{SubjectID: "u-1", PageSize: 2, CursorEntryID: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if second.Entries[0].Sequence != 3 || second.Entries[1].Sequence != 4 {
		t.Fatalf("unexpected second page: %+v", second.Entries)
	}

	backward, err := h.module.History.GetHistoryPage(ctx, entities.HistoryQuery{
		SubjectID:     "u-1",
		PageSize:      10,
		CursorEntryID: second.Entries[1].EntryID,
		Direction:     entities.DirectionBackward,
	})
	if err != nil {
		t.Fatalf("backward page: %v", err)
	}
	if len(backward.Entries) != 3 || backward.HasMore || backward.Entries[0].Sequence != 3 {
		t.Fatalf("unexpected backward page: %+v", backward)
	}

	if _, err := h.module.History.GetHistoryPage(ctx, entities.HistoryQuery{SubjectID: "u-1", CursorEntryID: "nope"}); !errors.Is(err, domainerrors.ErrInvalidHistoryQuery) {
		t.Fatalf("expected ErrInvalidHistoryQuery, got %v", err)
	}
}
