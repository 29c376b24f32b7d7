package txcoord

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a store failure for retry decisions.
type Kind string

const (
	KindTransient Kind = "transient"
	KindConflict  Kind = "conflict"
	KindNotFound  Kind = "not_found"
	KindFatal     Kind = "fatal"
)

var (
	ErrRetryExhausted = errors.New("unit of work retry budget exhausted")
	ErrUnknownStore   = errors.New("unknown store")
	ErrStoreNotInUnit = errors.New("store is not part of this unit of work")
	ErrSessionClosed  = errors.New("session already committed or aborted")
)

// StoreError is the tagged error every store adapter returns.
type StoreError struct {
	Store StoreID
	Kind  Kind
	Op    string
	Err   error
}

func NewStoreError(store StoreID, kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Store: store, Kind: kind, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s (%s): %v", e.Store, e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// KindOf reports the store error kind carried by err, or "" when err is not a store error.
func KindOf(err error) Kind {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return ""
}

func IsRetryable(err error) bool {
	var commitErr *CommitError
	if errors.As(err, &commitErr) && commitErr.Partial() {
		return false
	}
	switch KindOf(err) {
	case KindTransient, KindConflict:
		return true
	default:
		return false
	}
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// CommitError reports a commit failure of one store. Committed lists stores
// that already made their writes durable before the failure.
type CommitError struct {
	Store     StoreID
	Committed []StoreID
	Aborted   []StoreID
	Err       error
}

func (e *CommitError) Error() string {
	if e.Partial() {
		return fmt.Sprintf("commit %s failed after %s committed: %v", e.Store, joinStores(e.Committed), e.Err)
	}
	return fmt.Sprintf("commit %s failed: %v", e.Store, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

func (e *CommitError) Partial() bool {
	return len(e.Committed) > 0
}

// RetryExhaustedError is returned when a unit kept failing with retryable
// errors until the attempt limit or the time budget ran out.
type RetryExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts in %s: %v", ErrRetryExhausted.Error(), e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

func joinStores(ids []StoreID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ",")
}
