package ports

import (
	"context"
	"time"

	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	"pollstack/internal/platform/txcoord"
)

type (
	StoreID  = txcoord.StoreID
	Sessions = txcoord.Sessions
)

const StoreUsers = txcoord.StoreUsers

// UnitOfWork runs fn atomically over the named stores and reruns it on
// transient conflicts.
type UnitOfWork interface {
	Run(ctx context.Context, stores []StoreID, fn func(context.Context, Sessions) error) error
}

// Repository is the session-scoped write side on the users store.
type Repository interface {
	LoadSubject(ctx context.Context, sessions Sessions, subjectID string) (entities.Subject, error)
	CreateSubject(ctx context.Context, sessions Sessions, subject entities.Subject) error
	// UpdateBalance writes subject only if the stored version still equals
	// expectedVersion; otherwise it fails with a conflict store error.
	UpdateBalance(ctx context.Context, sessions Sessions, subject entities.Subject, expectedVersion int64) error
	InsertEntry(ctx context.Context, sessions Sessions, entry entities.Entry) error
	FindEntryByRelation(
		ctx context.Context,
		sessions Sessions,
		subjectID string,
		relatedEntityID string,
		kind entities.EntryKind,
	) (entities.Entry, bool, error)
}

// Reader serves committed state outside any unit of work.
type Reader interface {
	GetSubject(ctx context.Context, subjectID string) (entities.Subject, error)
	GetEntry(ctx context.Context, entryID string) (entities.Entry, error)
	// ListEntries returns up to limit entries of subjectID strictly after
	// (forward) or before (backward) the given sequence, in that direction.
	// A zero sequence starts from the oldest or newest entry.
	ListEntries(
		ctx context.Context,
		subjectID string,
		fromSequence int64,
		direction entities.Direction,
		limit int,
	) ([]entities.Entry, error)
	ListAllEntries(ctx context.Context, subjectID string) ([]entities.Entry, error)
	ListSubjectIDs(ctx context.Context) ([]string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type Metrics interface {
	LedgerAppended(kind string)
}
