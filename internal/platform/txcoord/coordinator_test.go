package txcoord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeStore struct {
	id         StoreID
	journal    *journal
	mu         sync.Mutex
	commitErrs []error
	openErr    error
}

func (s *fakeStore) ID() StoreID { return s.id }

func (s *fakeStore) OpenSession(context.Context) (Session, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.journal.add("open:" + string(s.id))
	return &fakeSession{store: s}, nil
}

func (s *fakeStore) nextCommitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commitErrs) == 0 {
		return nil
	}
	err := s.commitErrs[0]
	s.commitErrs = s.commitErrs[1:]
	return err
}

type fakeSession struct {
	store  *fakeStore
	closed bool
}

func (s *fakeSession) StoreID() StoreID { return s.store.id }

func (s *fakeSession) Commit(context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	if err := s.store.nextCommitErr(); err != nil {
		s.store.journal.add("commit_failed:" + string(s.store.id))
		return err
	}
	s.store.journal.add("commit:" + string(s.store.id))
	return nil
}

func (s *fakeSession) Abort(context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.store.journal.add("abort:" + string(s.store.id))
	return nil
}

type countingRecorder struct {
	mu        sync.Mutex
	attempts  int
	retries   int
	exhausted int
	partial   int
}

func (r *countingRecorder) UnitAttempted([]StoreID) { r.mu.Lock(); r.attempts++; r.mu.Unlock() }
func (r *countingRecorder) UnitRetried([]StoreID, Kind) {
	r.mu.Lock()
	r.retries++
	r.mu.Unlock()
}
func (r *countingRecorder) UnitExhausted([]StoreID) { r.mu.Lock(); r.exhausted++; r.mu.Unlock() }
func (r *countingRecorder) PartialCommit(StoreID, []StoreID) {
	r.mu.Lock()
	r.partial++
	r.mu.Unlock()
}

func testPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		Budget:      5 * time.Second,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}
}

func newTestCoordinator(t *testing.T, attempts int, stores ...*fakeStore) (*Coordinator, *countingRecorder) {
	t.Helper()
	recorder := &countingRecorder{}
	list := make([]Store, 0, len(stores))
	for _, store := range stores {
		list = append(list, store)
	}
	return New(list, WithPolicy(testPolicy(attempts)), WithRecorder(recorder)), recorder
}

func TestRunCommitsInGlobalOrder(t *testing.T) {
	j := &journal{}
	vote := &fakeStore{id: StoreVote, journal: j}
	users := &fakeStore{id: StoreUsers, journal: j}
	research := &fakeStore{id: StoreResearch, journal: j}
	coordinator, _ := newTestCoordinator(t, 3, vote, users, research)

	err := coordinator.Run(context.Background(), []StoreID{StoreVote, StoreResearch, StoreUsers, StoreVote}, func(_ context.Context, sessions Sessions) error {
		assert.Equal(t, []StoreID{StoreUsers, StoreResearch, StoreVote}, sessions.Stores())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"open:users", "open:research", "open:vote",
		"commit:users", "commit:research", "commit:vote",
	}, j.list())
}

func TestRunAbortsEverySessionOnApplyError(t *testing.T) {
	j := &journal{}
	users := &fakeStore{id: StoreUsers, journal: j}
	research := &fakeStore{id: StoreResearch, journal: j}
	coordinator, recorder := newTestCoordinator(t, 3, users, research)

	businessErr := errors.New("insufficient balance")
	err := coordinator.Run(context.Background(), []StoreID{StoreUsers, StoreResearch}, func(context.Context, Sessions) error {
		return businessErr
	})
	require.ErrorIs(t, err, businessErr)
	assert.Equal(t, []string{"open:users", "open:research", "abort:users", "abort:research"}, j.list())
	assert.Equal(t, 1, recorder.attempts)
}

func TestRunRetriesConflictThenSucceeds(t *testing.T) {
	j := &journal{}
	users := &fakeStore{id: StoreUsers, journal: j, commitErrs: []error{
		NewStoreError(StoreUsers, KindConflict, "commit", errors.New("version moved")),
	}}
	coordinator, recorder := newTestCoordinator(t, 3, users)

	calls := 0
	value, err := RunAtomic(context.Background(), coordinator, []StoreID{StoreUsers}, func(context.Context, Sessions) (int, error) {
		calls++
		return calls * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20, value)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, recorder.retries)
}

func TestRunReturnsRetryExhausted(t *testing.T) {
	j := &journal{}
	transient := NewStoreError(StoreUsers, KindTransient, "apply", errors.New("write conflict"))
	users := &fakeStore{id: StoreUsers, journal: j}
	coordinator, recorder := newTestCoordinator(t, 3, users)

	calls := 0
	err := coordinator.Run(context.Background(), []StoreID{StoreUsers}, func(context.Context, Sessions) error {
		calls++
		return transient
	})
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.ErrorIs(t, err, transient)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, recorder.exhausted)
}

func TestRunDoesNotRetryNonRetryableStoreErrors(t *testing.T) {
	users := &fakeStore{id: StoreUsers, journal: &journal{}}
	coordinator, _ := newTestCoordinator(t, 5, users)

	calls := 0
	err := coordinator.Run(context.Background(), []StoreID{StoreUsers}, func(context.Context, Sessions) error {
		calls++
		return NewStoreError(StoreUsers, KindNotFound, "get", errors.New("missing"))
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, calls)
}

func TestRunReportsPartialCommitWithoutRetry(t *testing.T) {
	j := &journal{}
	users := &fakeStore{id: StoreUsers, journal: j}
	research := &fakeStore{id: StoreResearch, journal: j, commitErrs: []error{
		NewStoreError(StoreResearch, KindTransient, "commit", errors.New("connection reset")),
	}}
	coordinator, recorder := newTestCoordinator(t, 5, users, research)

	calls := 0
	err := coordinator.Run(context.Background(), []StoreID{StoreUsers, StoreResearch}, func(context.Context, Sessions) error {
		calls++
		return nil
	})
	require.Error(t, err)

	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.True(t, commitErr.Partial())
	assert.Equal(t, StoreResearch, commitErr.Store)
	assert.Equal(t, []StoreID{StoreUsers}, commitErr.Committed)
	assert.False(t, errors.Is(err, ErrRetryExhausted))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, recorder.partial)
	assert.Equal(t, []string{"open:users", "open:research", "commit:users", "commit_failed:research"}, j.list())
}

func TestRunRetriesFirstStoreCommitFailure(t *testing.T) {
	j := &journal{}
	users := &fakeStore{id: StoreUsers, journal: j, commitErrs: []error{
		NewStoreError(StoreUsers, KindTransient, "commit", errors.New("serialization failure")),
	}}
	vote := &fakeStore{id: StoreVote, journal: j}
	coordinator, recorder := newTestCoordinator(t, 3, users, vote)

	err := coordinator.Run(context.Background(), []StoreID{StoreUsers, StoreVote}, func(context.Context, Sessions) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, recorder.partial)
	assert.Contains(t, j.list(), "abort:vote")
}

func TestRunAbortsAndRepanics(t *testing.T) {
	j := &journal{}
	users := &fakeStore{id: StoreUsers, journal: j}
	coordinator, _ := newTestCoordinator(t, 3, users)

	assert.PanicsWithValue(t, "boom", func() {
		_ = coordinator.Run(context.Background(), []StoreID{StoreUsers}, func(context.Context, Sessions) error {
			panic("boom")
		})
	})
	assert.Equal(t, []string{"open:users", "abort:users"}, j.list())
}

func TestRunRejectsUnknownStore(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, 3, &fakeStore{id: StoreUsers, journal: &journal{}})
	err := coordinator.Run(context.Background(), []StoreID{StorePayments}, func(context.Context, Sessions) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.ErrorIs(t, err, ErrUnknownStore)
}

func TestRunAbortsOpenedSessionsWhenOpenFails(t *testing.T) {
	j := &journal{}
	users := &fakeStore{id: StoreUsers, journal: j}
	vote := &fakeStore{id: StoreVote, journal: j, openErr: NewStoreError(StoreVote, KindFatal, "open_session", errors.New("down"))}
	coordinator, _ := newTestCoordinator(t, 3, users, vote)

	err := coordinator.Run(context.Background(), []StoreID{StoreUsers, StoreVote}, func(context.Context, Sessions) error {
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, []string{"open:users", "abort:users"}, j.list())
}

func TestSessionsGetRejectsStoreOutsideUnit(t *testing.T) {
	sessions := NewSessions(&fakeSession{store: &fakeStore{id: StoreUsers, journal: &journal{}}})
	_, err := sessions.Get(StoreVote)
	require.ErrorIs(t, err, ErrStoreNotInUnit)
}
