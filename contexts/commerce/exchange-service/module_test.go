package exchangeservice_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	exchangeservice "pollstack/contexts/commerce/exchange-service"
	"pollstack/contexts/commerce/exchange-service/application"
	domainerrors "pollstack/contexts/commerce/exchange-service/domain/errors"
	"pollstack/contexts/commerce/exchange-service/ports"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/txcoord"
)

var errInsufficient = errors.New("insufficient balance")

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct{ next atomic.Int64 }

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	return fmt.Sprintf("o-%03d", s.next.Add(1)), nil
}

type balanceLedger struct {
	users   *memstore.Store
	charges atomic.Int64
}

func (l *balanceLedger) FindCharge(_ context.Context, sessions ports.Sessions, subjectID string, reference string) (ports.Receipt, bool, error) {
	sess, err := sessions.Get(ports.StoreUsers)
	if err != nil {
		return ports.Receipt{}, false, err
	}
	memSess, err := memstore.AsSession(sess)
	if err != nil {
		return ports.Receipt{}, false, err
	}
	receipt, err := memstore.Get[ports.Receipt](memSess, "charges", subjectID+"|"+reference)
	if err != nil {
		if txcoord.IsNotFound(err) {
			return ports.Receipt{}, false, nil
		}
		return ports.Receipt{}, false, err
	}
	return receipt, true, nil
}

func (l *balanceLedger) Charge(_ context.Context, sessions ports.Sessions, charge ports.Charge) (ports.Receipt, error) {
	sess, err := sessions.Get(ports.StoreUsers)
	if err != nil {
		return ports.Receipt{}, err
	}
	memSess, err := memstore.AsSession(sess)
	if err != nil {
		return ports.Receipt{}, err
	}
	balance, err := memstore.Get[int64](memSess, "balances", charge.SubjectID)
	if err != nil {
		return ports.Receipt{}, err
	}
	if balance < charge.Amount {
		return ports.Receipt{}, errInsufficient
	}
	if err := memSess.Put("balances", charge.SubjectID, balance-charge.Amount); err != nil {
		return ports.Receipt{}, err
	}
	receipt := ports.Receipt{EntryID: "entry-" + charge.Reference, ResultingBalance: balance - charge.Amount}
	if err := memSess.Insert("charges", charge.SubjectID+"|"+charge.Reference, receipt); err != nil {
		return ports.Receipt{}, err
	}
	l.charges.Add(1)
	return receipt, nil
}

func (l *balanceLedger) balance(t *testing.T, subjectID string) int64 {
	t.Helper()
	balance, err := memstore.Read[int64](l.users, "balances", subjectID)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

type harness struct {
	module   exchangeservice.Module
	ledger   *balanceLedger
	payments *memstore.Store
}

func newHarness(t *testing.T, balance int64) harness {
	t.Helper()
	users := memstore.New(txcoord.StoreUsers)
	payments := memstore.New(txcoord.StorePayments)
	if err := users.Seed("balances", "u-1", balance); err != nil {
		t.Fatalf("seed: %v", err)
	}
	coordinator := txcoord.New([]txcoord.Store{users, payments}, txcoord.WithPolicy(txcoord.Policy{
		MaxAttempts: 3,
		Budget:      time.Second,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}))
	ledger := &balanceLedger{users: users}
	module := exchangeservice.NewInMemoryModule(payments, exchangeservice.Dependencies{
		UnitOfWork: coordinator,
		Ledger:     ledger,
		Clock:      fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		IDGen:      &sequenceIDs{},
	})
	return harness{module: module, ledger: ledger, payments: payments}
}

func TestExchangeChargesOnceAndReplays(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()
	input := application.ExchangeInput{SubjectID: "u-1", ProductID: "coffee", ProductName: "Coffee", Amount: 30}

	first, err := h.module.Service.ExchangeProduct(ctx, "key-1", input)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if first.Replayed || first.Balance != 70 || first.Order.LedgerEntryID != "entry-exchange:key-1" {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := h.module.Service.ExchangeProduct(ctx, "key-1", input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed || second.Order.OrderID != first.Order.OrderID {
		t.Fatalf("expected replay of %s, got %+v", first.Order.OrderID, second)
	}
	if got := h.ledger.balance(t, "u-1"); got != 70 {
		t.Fatalf("expected balance 70, got %d", got)
	}
	if h.ledger.charges.Load() != 1 {
		t.Fatalf("expected one charge, got %d", h.ledger.charges.Load())
	}
}

func TestExchangeRejectsReusedKeyWithDifferentRequest(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()

	if _, err := h.module.Service.ExchangeProduct(ctx, "key-1", application.ExchangeInput{SubjectID: "u-1", ProductID: "coffee", Amount: 30}); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	_, err := h.module.Service.ExchangeProduct(ctx, "key-1", application.ExchangeInput{SubjectID: "u-1", ProductID: "tea", Amount: 30})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestExchangeInsufficientBalanceWritesNoOrder(t *testing.T) {
	h := newHarness(t, 10)
	_, err := h.module.Service.ExchangeProduct(context.Background(), "key-1", application.ExchangeInput{SubjectID: "u-1", ProductID: "coffee", Amount: 30})
	if !errors.Is(err, errInsufficient) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	orders, err := h.module.Service.ListOrders(context.Background(), "u-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders, got %d", len(orders))
	}
	if got := h.ledger.balance(t, "u-1"); got != 10 {
		t.Fatalf("balance moved to %d", got)
	}
}

func TestExchangeRebuildsOrderAfterPartialCommit(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()
	input := application.ExchangeInput{SubjectID: "u-1", ProductID: "coffee", Amount: 30}

	var failures atomic.Int64
	h.payments.SetCommitHook(func(context.Context) error {
		if failures.Add(1) == 1 {
			return txcoord.NewStoreError(txcoord.StorePayments, txcoord.KindTransient, "commit", errors.New("connection reset"))
		}
		return nil
	})
	_, err := h.module.Service.ExchangeProduct(ctx, "key-1", input)
	var commitErr *txcoord.CommitError
	if !errors.As(err, &commitErr) || !commitErr.Partial() {
		t.Fatalf("expected partial commit error, got %v", err)
	}
	if got := h.ledger.balance(t, "u-1"); got != 70 {
		t.Fatalf("expected debit to have committed, balance %d", got)
	}

	result, err := h.module.Service.ExchangeProduct(ctx, "key-1", input)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if !result.Repaired || result.Order.LedgerEntryID != "entry-exchange:key-1" {
		t.Fatalf("expected repaired order, got %+v", result)
	}
	if got := h.ledger.balance(t, "u-1"); got != 70 {
		t.Fatalf("expected no second debit, balance %d", got)
	}
	if h.ledger.charges.Load() != 1 {
		t.Fatalf("expected one charge, got %d", h.ledger.charges.Load())
	}
}

func TestExchangeValidatesInput(t *testing.T) {
	h := newHarness(t, 100)
	cases := []struct {
		name string
		key  string
		in   application.ExchangeInput
		want error
	}{
		{"missing key", "", application.ExchangeInput{SubjectID: "u-1", ProductID: "p", Amount: 1}, domainerrors.ErrIdempotencyKeyRequired},
		{"missing subject", "k", application.ExchangeInput{ProductID: "p", Amount: 1}, domainerrors.ErrInvalidRequest},
		{"zero amount", "k", application.ExchangeInput{SubjectID: "u-1", ProductID: "p"}, domainerrors.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.module.Service.ExchangeProduct(context.Background(), tc.key, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
