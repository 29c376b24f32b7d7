package lotteryservice_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	lotteryservice "pollstack/contexts/credit-ledger/lottery-service"
	"pollstack/contexts/credit-ledger/lottery-service/adapters/random"
	"pollstack/contexts/credit-ledger/lottery-service/application/commands"
	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/lottery-service/domain/errors"
	"pollstack/contexts/credit-ledger/lottery-service/ports"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/txcoord"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct{ next atomic.Int64 }

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	return fmt.Sprintf("id-%03d", s.next.Add(1)), nil
}

type entityDoc struct {
	Entity       ports.RewardableEntity
	Participants []entities.Participant
}

// fakeEntities keeps rewardable entities in the research memstore.
type fakeEntities struct{}

func (fakeEntities) load(sessions ports.Sessions, kind entities.EntityKind, id string) (*memstore.Session, entityDoc, error) {
	sess, err := sessions.Get(ports.StoreFor(kind))
	if err != nil {
		return nil, entityDoc{}, err
	}
	memSess, err := memstore.AsSession(sess)
	if err != nil {
		return nil, entityDoc{}, err
	}
	doc, err := memstore.Get[entityDoc](memSess, "entities", id)
	if txcoord.IsNotFound(err) {
		return nil, entityDoc{}, domainerrors.ErrEntityNotFound
	}
	return memSess, doc, err
}

func (f fakeEntities) LoadRewardable(_ context.Context, sessions ports.Sessions, kind entities.EntityKind, id string) (ports.RewardableEntity, error) {
	_, doc, err := f.load(sessions, kind, id)
	return doc.Entity, err
}

func (f fakeEntities) ListParticipants(_ context.Context, sessions ports.Sessions, kind entities.EntityKind, id string) ([]entities.Participant, error) {
	_, doc, err := f.load(sessions, kind, id)
	return doc.Participants, err
}

func (f fakeEntities) MarkDistributed(_ context.Context, sessions ports.Sessions, kind entities.EntityKind, id string, _ time.Time) error {
	sess, doc, err := f.load(sessions, kind, id)
	if err != nil {
		return err
	}
	doc.Entity.DistributionState = entities.DistributionDistributed
	return sess.Put("entities", id, doc)
}

// fakeLedger records payouts in the users memstore.
type fakeLedger struct {
	credits atomic.Int64
}

func payoutKey(subjectID string, entityID string) string {
	return subjectID + "|" + entityID
}

func (l *fakeLedger) CreditWinner(_ context.Context, sessions ports.Sessions, req ports.PayoutRequest) (entities.Payout, error) {
	sess, err := sessions.Get(ports.StoreUsers)
	if err != nil {
		return entities.Payout{}, err
	}
	memSess, err := memstore.AsSession(sess)
	if err != nil {
		return entities.Payout{}, err
	}
	payout := entities.Payout{SubjectID: req.SubjectID, EntryID: "entry-" + req.SubjectID, Amount: req.Amount, ResultingBalance: req.Amount}
	if err := memSess.Insert("payouts", payoutKey(req.SubjectID, req.EntityID), payout); err != nil {
		return entities.Payout{}, err
	}
	l.credits.Add(1)
	return payout, nil
}

func (l *fakeLedger) FindPayout(_ context.Context, sessions ports.Sessions, subjectID string, entityID string, _ entities.EntityKind) (entities.Payout, bool, error) {
	sess, err := sessions.Get(ports.StoreUsers)
	if err != nil {
		return entities.Payout{}, false, err
	}
	memSess, err := memstore.AsSession(sess)
	if err != nil {
		return entities.Payout{}, false, err
	}
	payout, err := memstore.Get[entities.Payout](memSess, "payouts", payoutKey(subjectID, entityID))
	if txcoord.IsNotFound(err) {
		return entities.Payout{}, false, nil
	}
	return payout, err == nil, err
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []entities.Result
}

func (p *recordingPublisher) PublishWinners(_ context.Context, result entities.Result, _ string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return nil
}

type harness struct {
	module    lotteryservice.Module
	users     *memstore.Store
	research  *memstore.Store
	ledger    *fakeLedger
	publisher *recordingPublisher
}

func newHarness(t *testing.T) harness {
	t.Helper()
	users := memstore.New(txcoord.StoreUsers)
	research := memstore.New(txcoord.StoreResearch)
	coordinator := txcoord.New([]txcoord.Store{users, research}, txcoord.WithPolicy(txcoord.Policy{
		MaxAttempts: 5,
		Budget:      5 * time.Second,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}))
	ledger := &fakeLedger{}
	publisher := &recordingPublisher{}
	module := lotteryservice.NewInMemoryModule(users, lotteryservice.Dependencies{
		UnitOfWork: coordinator,
		Entities:   fakeEntities{},
		Ledger:     ledger,
		Publisher:  publisher,
		Random:     random.NewSeeded(11, 13),
		Clock:      fixedClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
		IDGen:      &sequenceIDs{},
	})
	return harness{module: module, users: users, research: research, ledger: ledger, publisher: publisher}
}

func (h harness) seed(t *testing.T, id string, state entities.DistributionState, reward int64, winners int, participants ...entities.Participant) {
	t.Helper()
	err := h.research.Seed("entities", id, entityDoc{
		Entity: ports.RewardableEntity{
			EntityID:          id,
			Kind:              entities.EntityKindResearch,
			Title:             "Coffee habits",
			RewardPerWinner:   reward,
			WinnerCount:       winners,
			DistributionState: state,
			Closed:            true,
		},
		Participants: participants,
	})
	if err != nil {
		t.Fatalf("seed entity: %v", err)
	}
}

func valid(ids ...string) []entities.Participant {
	out := make([]entities.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, entities.Participant{SubjectID: id, Valid: true})
	}
	return out
}

func distribute(h harness, id string) (entities.Result, error) {
	return h.module.Distributor.Execute(context.Background(), commands.DistributeCommand{
		EntityID:   id,
		EntityKind: entities.EntityKindResearch,
	})
}

func TestDistributePaysWinnersOnce(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "r-1", entities.DistributionPending, 10, 2, valid("u1", "u2", "u3", "u4", "u5")...)

	first, err := distribute(h, "r-1")
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if first.AlreadyDistributed || len(first.Winners) != 2 || len(first.Payouts) != 2 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.State != entities.DistributionDistributed {
		t.Fatalf("expected DISTRIBUTED, got %s", first.State)
	}

	second, err := distribute(h, "r-1")
	if err != nil {
		t.Fatalf("second distribute: %v", err)
	}
	if !second.AlreadyDistributed {
		t.Fatalf("second call must report already distributed")
	}
	if fmt.Sprint(second.Winners) != fmt.Sprint(first.Winners) || len(second.Payouts) != 2 {
		t.Fatalf("second call must return the persisted result, got %+v", second)
	}
	if got := h.ledger.credits.Load(); got != 2 {
		t.Fatalf("expected exactly 2 credits, got %d", got)
	}
	if len(h.publisher.results) != 1 {
		t.Fatalf("expected one winner announcement, got %d", len(h.publisher.results))
	}

	draw, err := h.module.Draws.GetDraw(context.Background(), entities.EntityKindResearch, "r-1")
	if err != nil {
		t.Fatalf("get draw: %v", err)
	}
	if draw.RewardAmount != 10 || len(draw.Winners) != 2 {
		t.Fatalf("unexpected draw: %+v", draw)
	}
}

func TestDistributePaysEveryEligibleWhenWinnersExceedPool(t *testing.T) {
	h := newHarness(t)
	participants := append(valid("u1", "u2", "u1"), entities.Participant{SubjectID: "cheater", Valid: false})
	h.seed(t, "r-2", entities.DistributionPending, 7, 10, participants...)

	result, err := distribute(h, "r-2")
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	winners := append([]string(nil), result.Winners...)
	sort.Strings(winners)
	if fmt.Sprint(winners) != "[u1 u2]" {
		t.Fatalf("expected u1 and u2 to win once each, got %v", winners)
	}
}

func TestDistributeWithNoParticipantsStillCompletes(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "r-3", entities.DistributionPending, 5, 3)

	result, err := distribute(h, "r-3")
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if result.State != entities.DistributionDistributed || len(result.Winners) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(h.publisher.results) != 0 {
		t.Fatalf("no announcement expected without winners")
	}
}

func TestDistributeSkipsNotApplicable(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "r-4", entities.DistributionNotApplicable, 0, 0, valid("u1")...)

	result, err := distribute(h, "r-4")
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if result.AlreadyDistributed || result.State != entities.DistributionNotApplicable || len(result.Winners) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if h.ledger.credits.Load() != 0 {
		t.Fatalf("no credit expected")
	}
}

func TestDistributeRecoversFromFlagCommitFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "r-5", entities.DistributionPending, 10, 2, valid("u1", "u2", "u3")...)

	var failures atomic.Int32
	failures.Store(1)
	h.research.SetCommitHook(func(context.Context) error {
		if failures.Add(-1) >= 0 {
			return txcoord.NewStoreError(txcoord.StoreResearch, txcoord.KindTransient, "commit", errors.New("crash before flag"))
		}
		return nil
	})

	if _, err := distribute(h, "r-5"); err == nil {
		t.Fatalf("expected partial commit failure")
	}
	draw, err := h.module.Draws.GetDraw(context.Background(), entities.EntityKindResearch, "r-5")
	if err != nil {
		t.Fatalf("draw must be committed with the payouts: %v", err)
	}
	if h.ledger.credits.Load() != 2 {
		t.Fatalf("expected payouts committed before the flag, got %d", h.ledger.credits.Load())
	}

	result, err := distribute(h, "r-5")
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if result.State != entities.DistributionDistributed || result.AlreadyDistributed {
		t.Fatalf("rerun must complete the distribution, got %+v", result)
	}
	if fmt.Sprint(result.Winners) != fmt.Sprint(draw.Winners) {
		t.Fatalf("rerun must reuse the persisted draw: %v vs %v", result.Winners, draw.Winners)
	}
	if h.ledger.credits.Load() != 2 {
		t.Fatalf("rerun must not pay twice, got %d credits", h.ledger.credits.Load())
	}
}

func TestDistributeRejectsInvalidCommands(t *testing.T) {
	h := newHarness(t)
	if _, err := h.module.Distributor.Execute(context.Background(), commands.DistributeCommand{EntityKind: entities.EntityKindVote}); !errors.Is(err, domainerrors.ErrInvalidEntityID) {
		t.Fatalf("expected ErrInvalidEntityID, got %v", err)
	}
	if _, err := h.module.Distributor.Execute(context.Background(), commands.DistributeCommand{EntityID: "x", EntityKind: "poll"}); !errors.Is(err, domainerrors.ErrInvalidEntityKind) {
		t.Fatalf("expected ErrInvalidEntityKind, got %v", err)
	}
	if _, err := distribute(h, "missing"); !errors.Is(err, domainerrors.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

// gatedUnitOfWork holds every unit until release is closed.
type gatedUnitOfWork struct {
	next    ports.UnitOfWork
	once    *sync.Once
	entered chan struct{}
	release chan struct{}
	runs    *atomic.Int64
}

func (g gatedUnitOfWork) Run(ctx context.Context, stores []ports.StoreID, fn func(context.Context, ports.Sessions) error) error {
	g.runs.Add(1)
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.next.Run(ctx, stores, fn)
}

func TestDistributeSharedRunOutlivesCancelledCaller(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "r-9", entities.DistributionPending, 4, 1, valid("u1", "u2")...)

	gate := gatedUnitOfWork{
		next:    h.module.Distributor.UnitOfWork,
		once:    &sync.Once{},
		entered: make(chan struct{}),
		release: make(chan struct{}),
		runs:    &atomic.Int64{},
	}
	uc := h.module.Distributor
	uc.UnitOfWork = gate
	cmd := commands.DistributeCommand{EntityID: "r-9", EntityKind: entities.EntityKindResearch}

	requestCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := uc.Execute(requestCtx, cmd)
		firstErr <- err
	}()
	<-gate.entered

	type outcome struct {
		result entities.Result
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		result, err := uc.Execute(context.Background(), cmd)
		second <- outcome{result: result, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller must return its own context error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled caller kept waiting on the shared run")
	}

	close(gate.release)
	got := <-second
	if got.err != nil {
		t.Fatalf("joined caller must not inherit the cancellation: %v", got.err)
	}
	if got.result.State != entities.DistributionDistributed || len(got.result.Winners) != 1 {
		t.Fatalf("unexpected shared result %+v", got.result)
	}
	if runs := gate.runs.Load(); runs != 1 {
		t.Fatalf("expected one coalesced run, got %d", runs)
	}
	if credits := h.ledger.credits.Load(); credits != 1 {
		t.Fatalf("expected one payout, got %d", credits)
	}
}
