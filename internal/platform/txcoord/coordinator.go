package txcoord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// StoreID names one independently transactional store.
type StoreID string

const (
	StoreUsers    StoreID = "users"
	StorePayments StoreID = "payments"
	StoreResearch StoreID = "research"
	StoreVote     StoreID = "vote"
)

// commitOrder puts ledger-bearing stores first and idempotency-flag stores last,
// so a partial commit can only leave "paid but not yet flagged".
var commitOrder = map[StoreID]int{
	StoreUsers:    0,
	StorePayments: 1,
	StoreResearch: 2,
	StoreVote:     3,
}

// CommitRank returns the position of id in the global commit order.
// Unknown stores sort after the known ones.
func CommitRank(id StoreID) int {
	if rank, ok := commitOrder[id]; ok {
		return rank
	}
	return len(commitOrder)
}

type Session interface {
	StoreID() StoreID
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

type Store interface {
	ID() StoreID
	OpenSession(ctx context.Context) (Session, error)
}

// Sessions is the set of open sessions handed to a unit of work.
type Sessions struct {
	byStore map[StoreID]Session
	ordered []StoreID
}

func NewSessions(sessions ...Session) Sessions {
	out := Sessions{byStore: make(map[StoreID]Session, len(sessions))}
	for _, sess := range sessions {
		out.byStore[sess.StoreID()] = sess
		out.ordered = append(out.ordered, sess.StoreID())
	}
	return out
}

func (s Sessions) Get(id StoreID) (Session, error) {
	sess, ok := s.byStore[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotInUnit, id)
	}
	return sess, nil
}

func (s Sessions) Stores() []StoreID {
	return append([]StoreID(nil), s.ordered...)
}

type Policy struct {
	MaxAttempts int
	Budget      time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Budget:      10 * time.Second,
		BaseBackoff: 20 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
	}
}

// Recorder receives unit of work outcomes. Implementations must be safe for concurrent use.
type Recorder interface {
	UnitAttempted(stores []StoreID)
	UnitRetried(stores []StoreID, kind Kind)
	UnitExhausted(stores []StoreID)
	PartialCommit(failed StoreID, committed []StoreID)
}

type Option func(*Coordinator)

func WithPolicy(policy Policy) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = recorder
	}
}

// Coordinator runs multi-store units of work: open one session per store,
// apply, commit in global order, abort everything on failure, and rerun
// the whole unit on transient conflicts.
type Coordinator struct {
	stores   map[StoreID]Store
	policy   Policy
	logger   *slog.Logger
	recorder Recorder
}

func New(stores []Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		stores: make(map[StoreID]Store, len(stores)),
		policy: DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, store := range stores {
		c.stores[store.ID()] = store
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.MaxAttempts <= 0 {
		c.policy.MaxAttempts = 1
	}
	return c
}

// RunAtomic runs fn as one unit of work over stores and returns its value
// once every session committed.
func RunAtomic[T any](ctx context.Context, c *Coordinator, stores []StoreID, fn func(context.Context, Sessions) (T, error)) (T, error) {
	var out T
	err := c.Run(ctx, stores, func(ctx context.Context, sessions Sessions) error {
		value, err := fn(ctx, sessions)
		if err != nil {
			return err
		}
		out = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Run is the non-generic form of RunAtomic. fn may run more than once and
// must not cause external side effects.
func (c *Coordinator) Run(ctx context.Context, stores []StoreID, fn func(context.Context, Sessions) error) error {
	ids, err := c.resolve(stores)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	attempts := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		if c.recorder != nil {
			c.recorder.UnitAttempted(ids)
		}
		runErr := c.attempt(ctx, ids, fn)
		if runErr == nil {
			return struct{}{}, nil
		}
		if !IsRetryable(runErr) {
			return struct{}{}, backoff.Permanent(runErr)
		}
		if time.Since(startedAt) >= c.policy.Budget && c.policy.Budget > 0 {
			return struct{}{}, backoff.Permanent(c.exhausted(ids, attempts, startedAt, runErr))
		}
		return struct{}{}, runErr
	},
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(uint(c.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(c.policy.Budget),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if c.recorder != nil {
				c.recorder.UnitRetried(ids, KindOf(err))
			}
			c.logger.Warn("unit of work retrying",
				"event", "txcoord_unit_retry",
				"module", "internal/platform/txcoord",
				"layer", "platform",
				"stores", joinStores(ids),
				"attempt", attempts,
				"backoff_ms", wait.Milliseconds(),
				"error", err.Error(),
			)
		}),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if errors.Is(err, ErrRetryExhausted) {
		return err
	}
	if IsRetryable(err) {
		return c.exhausted(ids, attempts, startedAt, err)
	}
	return err
}

func (c *Coordinator) exhausted(ids []StoreID, attempts int, startedAt time.Time, last error) error {
	if c.recorder != nil {
		c.recorder.UnitExhausted(ids)
	}
	elapsed := time.Since(startedAt)
	c.logger.Error("unit of work retry budget exhausted",
		"event", "txcoord_unit_exhausted",
		"module", "internal/platform/txcoord",
		"layer", "platform",
		"stores", joinStores(ids),
		"attempts", attempts,
		"elapsed_ms", elapsed.Milliseconds(),
		"error", last.Error(),
	)
	return &RetryExhaustedError{Attempts: attempts, Elapsed: elapsed, Last: last}
}

func (c *Coordinator) backOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     c.policy.BaseBackoff,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         c.policy.MaxBackoff,
	}
}

func (c *Coordinator) resolve(stores []StoreID) ([]StoreID, error) {
	if len(stores) == 0 {
		return nil, errors.New("unit of work needs at least one store")
	}
	seen := make(map[StoreID]struct{}, len(stores))
	ids := make([]StoreID, 0, len(stores))
	for _, id := range stores {
		if _, ok := c.stores[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStore, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return CommitRank(ids[i]) < CommitRank(ids[j])
	})
	return ids, nil
}

func (c *Coordinator) attempt(ctx context.Context, ids []StoreID, fn func(context.Context, Sessions) error) error {
	opened := make([]Session, 0, len(ids))
	for _, id := range ids {
		sess, err := c.stores[id].OpenSession(ctx)
		if err != nil {
			c.abort(ctx, opened)
			return err
		}
		opened = append(opened, sess)
	}
	sessions := NewSessions(opened...)

	if err := c.apply(ctx, sessions, opened, fn); err != nil {
		c.abort(ctx, opened)
		return err
	}

	committed := make([]StoreID, 0, len(opened))
	for i, sess := range opened {
		if err := sess.Commit(ctx); err != nil {
			rest := opened[i:]
			c.abort(ctx, rest)
			commitErr := &CommitError{
				Store:     sess.StoreID(),
				Committed: committed,
				Aborted:   storeIDs(rest),
				Err:       err,
			}
			if commitErr.Partial() {
				c.reportPartialCommit(commitErr)
			}
			return commitErr
		}
		committed = append(committed, sess.StoreID())
	}
	return nil
}

func (c *Coordinator) apply(ctx context.Context, sessions Sessions, opened []Session, fn func(context.Context, Sessions) error) error {
	defer func() {
		if r := recover(); r != nil {
			c.abort(ctx, opened)
			panic(r)
		}
	}()
	return fn(ctx, sessions)
}

func (c *Coordinator) abort(ctx context.Context, sessions []Session) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, sess := range sessions {
		if err := sess.Abort(cleanupCtx); err != nil && !errors.Is(err, ErrSessionClosed) {
			c.logger.Warn("session abort failed",
				"event", "txcoord_session_abort_failed",
				"module", "internal/platform/txcoord",
				"layer", "platform",
				"store", string(sess.StoreID()),
				"error", err.Error(),
			)
		}
	}
}

// reportPartialCommit records the inconsistency window left by a commit
// failure after an earlier store committed. Reconciliation replays the unit.
func (c *Coordinator) reportPartialCommit(err *CommitError) {
	if c.recorder != nil {
		c.recorder.PartialCommit(err.Store, err.Committed)
	}
	c.logger.Error("partial commit risk",
		"event", "txcoord_partial_commit_risk",
		"module", "internal/platform/txcoord",
		"layer", "platform",
		"failed_store", string(err.Store),
		"committed_stores", joinStores(err.Committed),
		"aborted_stores", joinStores(err.Aborted),
		"error", err.Err.Error(),
	)
}

func storeIDs(sessions []Session) []StoreID {
	out := make([]StoreID, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.StoreID())
	}
	return out
}
