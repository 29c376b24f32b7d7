package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type Kind string

const (
	KindResearch Kind = "research"
	KindVote     Kind = "vote"
)

func (k Kind) Valid() bool {
	return k == KindResearch || k == KindVote
}

// DistributionState guards the lottery payout of an entity. It moves from
// PENDING to DISTRIBUTED once and never back.
type DistributionState string

const (
	DistributionNotApplicable DistributionState = "NOT_APPLICABLE"
	DistributionPending       DistributionState = "PENDING"
	DistributionDistributed   DistributionState = "DISTRIBUTED"
)

// Entity is a research or a vote together with its closing and reward
// settings.
type Entity struct {
	EntityID          string
	Kind              Kind
	Title             string
	AuthorID          string
	Deadline          *time.Time
	ExtraCredit       int64
	WinnerCount       int
	DistributionState DistributionState
	Closed            bool
	ClosedAt          *time.Time
	DistributedAt     *time.Time
	PulledUpAt        *time.Time
	EstimatedMinutes  int
	AgeScreening      bool
	ParticipantCount  int
	// Revision counts paid author changes (pull-ups and edits). Only those
	// writes bump it, so it identifies the charge for the next change.
	Revision  int64
	DeletedAt *time.Time
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key identifies an entity across both content stores.
func (e Entity) Key() string {
	return EntityKey(e.Kind, e.EntityID)
}

func EntityKey(kind Kind, entityID string) string {
	return string(kind) + ":" + entityID
}

// DeadlinePassed reports whether the entity has a deadline at or before now.
func (e Entity) DeadlinePassed(now time.Time) bool {
	return e.Deadline != nil && !e.Deadline.After(now)
}

// DueForClosure reports an open entity whose deadline has passed.
func (e Entity) DueForClosure(now time.Time) bool {
	return !e.Closed && e.DeadlinePassed(now)
}

// AwaitingDistribution reports a PENDING entity that can no longer take
// participants.
func (e Entity) AwaitingDistribution(now time.Time) bool {
	return e.DistributionState == DistributionPending && (e.Closed || e.DeadlinePassed(now))
}

// HasLottery reports whether closing the entity should trigger a payout.
func (e Entity) HasLottery() bool {
	return e.ExtraCredit > 0 && e.WinnerCount > 0 && e.DistributionState == DistributionPending
}

// UploadEntityID derives the entity id of a keyed upload, so a retried
// upload lands on the entity its first attempt paid for.
func UploadEntityID(authorID string, idempotencyKey string) string {
	sum := sha256.Sum256([]byte(authorID + "\x00" + idempotencyKey))
	h := hex.EncodeToString(sum[:16])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

func (e Entity) Deleted() bool {
	return e.DeletedAt != nil
}

// NextRevisionRef is the ledger reference of the author's next paid change.
func (e Entity) NextRevisionRef() string {
	return fmt.Sprintf("%s#r%d", e.EntityID, e.Revision+1)
}

// Delete soft-deletes and closes the entity. Deleting twice reports false.
func (e Entity) Delete(now time.Time) (Entity, bool) {
	if e.Deleted() {
		return e, false
	}
	deletedAt := now
	e.DeletedAt = &deletedAt
	if !e.Closed {
		e.Closed = true
		e.ClosedAt = &deletedAt
	}
	return e.Touch(now), true
}

// Touch returns e with its version advanced for an optimistic write.
func (e Entity) Touch(now time.Time) Entity {
	e.Version++
	e.UpdatedAt = now
	return e
}

// Close marks the entity closed. Closing twice is a no-op and reports false.
func (e Entity) Close(now time.Time) (Entity, bool) {
	if e.Closed {
		return e, false
	}
	e.Closed = true
	closedAt := now
	e.ClosedAt = &closedAt
	return e.Touch(now), true
}

// MarkDistributed records the payout. It is a no-op unless the entity is PENDING.
func (e Entity) MarkDistributed(now time.Time) (Entity, bool) {
	if e.DistributionState != DistributionPending {
		return e, false
	}
	e.DistributionState = DistributionDistributed
	at := now
	e.DistributedAt = &at
	return e.Touch(now), true
}

type Participation struct {
	EntityID  string
	Kind      Kind
	SubjectID string
	Valid     bool
	CreatedAt time.Time
}

// StatTicket grants a subject lasting access to a vote's statistics.
type StatTicket struct {
	EntityID  string
	SubjectID string
	CreatedAt time.Time
}
