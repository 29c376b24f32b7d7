package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	exchangeapp "pollstack/contexts/commerce/exchange-service/application"
	ledgercommands "pollstack/contexts/credit-ledger/ledger-service/application/commands"
	ledgerentities "pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	ledgererrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	lotterycommands "pollstack/contexts/credit-ledger/lottery-service/application/commands"
	lotteryentities "pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	surveycommands "pollstack/contexts/survey-content/survey-service/application/commands"
	surveyentities "pollstack/contexts/survey-content/survey-service/domain/entities"
	"pollstack/internal/platform/config"
	"pollstack/internal/platform/notify"
	"pollstack/internal/platform/txcoord"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%04d", s.next), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *recordingNotifier) Notify(_ context.Context, subjectID string, _ notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subjectID)
	return nil
}

func (n *recordingNotifier) Delivered() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := append([]string(nil), n.subjects...)
	sort.Strings(out)
	return out
}

func testConfig() config.Config {
	return config.Config{
		ServiceName:      "pollstack-test",
		HTTPPort:         "0",
		Retry:            config.RetryConfig{MaxAttempts: 3, Budget: 2 * time.Second, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		SweepSchedule:    "@every 1m",
		AuditSchedule:    "@every 1h",
		SweepParallelism: 2,
		NotifyRatePerSec: 100,
		NotifyBurst:      10,
	}
}

func newTestContainer(t *testing.T, notifier notify.Notifier) (*Container, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	container := BuildInMemory(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Clock:    clock,
		IDGen:    &sequenceIDs{},
		Notifier: notifier,
	})
	t.Cleanup(func() { _ = container.Close() })
	return container, clock
}

func openFunded(t *testing.T, c *Container, subjectID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, err := c.Ledger.Subjects.Execute(ctx, ledgercommands.OpenSubjectCommand{SubjectID: subjectID})
	require.NoError(t, err)
	if balance == 0 {
		return
	}
	_, err = c.Ledger.Adjustments.Execute(ctx, ledgercommands.AdjustCommand{
		SubjectID: subjectID,
		Delta:     balance,
		Reason:    "test funding",
		ActorID:   "admin-1",
	})
	require.NoError(t, err)
}

func balanceOf(t *testing.T, c *Container, subjectID string) int64 {
	t.Helper()
	balance, err := c.Ledger.Balances.GetBalance(context.Background(), subjectID)
	require.NoError(t, err)
	return balance
}

func TestDebitLowersBalanceAndRecordsResultingBalance(t *testing.T) {
	c, _ := newTestContainer(t, nil)
	openFunded(t, c, "subject-a", 100)

	result, err := c.Exchange.Service.ExchangeProduct(context.Background(), "key-1", exchangeapp.ExchangeInput{
		SubjectID:   "subject-a",
		ProductID:   "coffee",
		ProductName: "Coffee voucher",
		Amount:      30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70), result.Balance)
	assert.Equal(t, int64(70), balanceOf(t, c, "subject-a"))

	page, err := c.Ledger.History.GetHistoryPage(context.Background(), ledgerentities.HistoryQuery{
		SubjectID: "subject-a",
		PageSize:  1,
		Direction: ledgerentities.DirectionBackward,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, int64(-30), page.Entries[0].Delta)
	assert.Equal(t, int64(70), page.Entries[0].ResultingBalance)
}

func TestDebitBeyondBalanceWritesNothing(t *testing.T) {
	c, _ := newTestContainer(t, nil)
	openFunded(t, c, "subject-b", 10)

	_, err := c.Exchange.Service.ExchangeProduct(context.Background(), "key-2", exchangeapp.ExchangeInput{
		SubjectID:   "subject-b",
		ProductID:   "mug",
		ProductName: "Mug",
		Amount:      20,
	})
	require.ErrorIs(t, err, ledgererrors.ErrInsufficientBalance)
	assert.Equal(t, int64(10), balanceOf(t, c, "subject-b"))

	orders, err := c.Exchange.Service.ListOrders(context.Background(), "subject-b", 0)
	require.NoError(t, err)
	assert.Empty(t, orders)

	drifted, _, err := c.Ledger.Audit.AuditAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifted)
}

func TestCloseDistributesLotteryExactlyOnce(t *testing.T) {
	notifier := &recordingNotifier{}
	c, _ := newTestContainer(t, notifier)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := c.Notifier.Start(ctx)

	openFunded(t, c, "author", 100)
	participants := []string{"subject-a", "subject-b", "subject-c"}
	for _, subjectID := range participants {
		openFunded(t, c, subjectID, 0)
	}

	upload, err := c.Surveys.Uploads.Execute(ctx, surveycommands.UploadCommand{
		Kind:        surveyentities.KindVote,
		AuthorID:    "author",
		Title:       "Lunch options",
		ExtraCredit: 5,
		WinnerCount: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), upload.Charged)
	entityID := upload.Entity.EntityID

	for _, subjectID := range participants {
		_, err := c.Surveys.Participants.Execute(ctx, surveycommands.ParticipateCommand{
			Kind:      surveyentities.KindVote,
			EntityID:  entityID,
			SubjectID: subjectID,
		})
		require.NoError(t, err)
	}

	closed, err := c.Surveys.Closer.CloseAndDistribute(ctx, surveycommands.CloseCommand{
		EntityID: entityID,
		Kind:     surveyentities.KindVote,
		ActorID:  "author",
	})
	require.NoError(t, err)
	require.NoError(t, closed.DistributionError)
	require.NotNil(t, closed.Distribution)
	winners := append([]string(nil), closed.Distribution.Winners...)
	sort.Strings(winners)
	require.Len(t, winners, 2)
	assert.NotEqual(t, winners[0], winners[1])

	total := int64(0)
	for _, subjectID := range participants {
		total += balanceOf(t, c, subjectID)
	}
	assert.Equal(t, int64(10), total)
	for _, winner := range winners {
		assert.Equal(t, int64(5), balanceOf(t, c, winner))
	}

	entity, err := c.Surveys.Entities.GetEntity(ctx, surveyentities.KindVote, entityID)
	require.NoError(t, err)
	assert.Equal(t, surveyentities.DistributionDistributed, entity.DistributionState)

	again, err := c.Lottery.Distributor.Execute(ctx, lotterycommands.DistributeCommand{
		EntityID:   entityID,
		EntityKind: lotteryentities.EntityKindVote,
	})
	require.NoError(t, err)
	assert.True(t, again.AlreadyDistributed)
	repeated := append([]string(nil), again.Winners...)
	sort.Strings(repeated)
	assert.Equal(t, winners, repeated)
	for _, winner := range winners {
		assert.Equal(t, int64(5), balanceOf(t, c, winner))
	}

	assert.Eventually(t, func() bool {
		return len(notifier.Delivered()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, winners, notifier.Delivered())

	cancel()
	<-done
}

func TestPartialCommitLeavesFirstStoreVisible(t *testing.T) {
	c, clock := newTestContainer(t, nil)
	openFunded(t, c, "author", 100)

	injected := txcoord.NewStoreError(txcoord.StoreResearch, txcoord.KindTransient, "commit", errors.New("research store unavailable"))
	c.Memory.Research.SetCommitHook(func(context.Context) error { return injected })

	deadline := clock.Now().Add(time.Hour)
	_, err := c.Surveys.Uploads.Execute(context.Background(), surveycommands.UploadCommand{
		Kind:             surveyentities.KindResearch,
		AuthorID:         "author",
		Title:            "Sleep habits",
		Deadline:         &deadline,
		EstimatedMinutes: 4,
		ExtraCredit:      2,
		WinnerCount:      1,
	})
	require.Error(t, err)

	var commitErr *txcoord.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.True(t, commitErr.Partial())
	assert.Equal(t, txcoord.StoreResearch, commitErr.Store)
	assert.Equal(t, []txcoord.StoreID{txcoord.StoreUsers}, commitErr.Committed)

	assert.Equal(t, int64(88), balanceOf(t, c, "author"))
	due, err := c.Surveys.Sweeper.Reader.ListDueForClosure(context.Background(), surveyentities.KindResearch, deadline.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestWorkerSweepClosesExpiredEntity(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	worker, err := BuildWorker(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Clock:    clock,
		IDGen:    &sequenceIDs{},
		Notifier: &recordingNotifier{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = worker.Close() })
	c := worker.Container
	ctx := context.Background()

	openFunded(t, c, "author", 50)
	openFunded(t, c, "subject-a", 0)
	deadline := clock.Now().Add(time.Hour)
	upload, err := c.Surveys.Uploads.Execute(ctx, surveycommands.UploadCommand{
		Kind:        surveyentities.KindVote,
		AuthorID:    "author",
		Title:       "Team outing",
		Deadline:    &deadline,
		ExtraCredit: 3,
		WinnerCount: 1,
	})
	require.NoError(t, err)
	_, err = c.Surveys.Participants.Execute(ctx, surveycommands.ParticipateCommand{
		Kind:      surveyentities.KindVote,
		EntityID:  upload.Entity.EntityID,
		SubjectID: "subject-a",
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	worker.Sweep(ctx)

	entity, err := c.Surveys.Entities.GetEntity(ctx, surveyentities.KindVote, upload.Entity.EntityID)
	require.NoError(t, err)
	assert.True(t, entity.Closed)
	assert.Equal(t, surveyentities.DistributionDistributed, entity.DistributionState)
	assert.Equal(t, int64(3), balanceOf(t, c, "subject-a"))
}

func TestBuildWorkerRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SweepSchedule = "every so often"
	_, err := BuildWorker(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	require.Error(t, err)
}

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, ":8080", normalizeAddr(""))
	assert.Equal(t, ":9090", normalizeAddr("9090"))
	assert.Equal(t, ":9090", normalizeAddr(":9090"))
}
