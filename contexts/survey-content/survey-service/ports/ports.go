package ports

import (
	"context"
	"time"

	"pollstack/contexts/survey-content/survey-service/domain/entities"
	"pollstack/internal/platform/txcoord"
)

type (
	StoreID  = txcoord.StoreID
	Sessions = txcoord.Sessions
)

const (
	StoreUsers    = txcoord.StoreUsers
	StoreResearch = txcoord.StoreResearch
	StoreVote     = txcoord.StoreVote
)

// StoreFor maps an entity kind to the store holding it.
func StoreFor(kind entities.Kind) StoreID {
	if kind == entities.KindVote {
		return StoreVote
	}
	return StoreResearch
}

type UnitOfWork interface {
	Run(ctx context.Context, stores []StoreID, fn func(context.Context, Sessions) error) error
}

// Repository is the session-scoped write side on the research and vote stores.
type Repository interface {
	LoadEntity(ctx context.Context, sessions Sessions, kind entities.Kind, entityID string) (entities.Entity, error)
	CreateEntity(ctx context.Context, sessions Sessions, entity entities.Entity) error
	// UpdateEntity writes entity only if the stored version still equals
	// expectedVersion; otherwise it fails with a conflict store error.
	UpdateEntity(ctx context.Context, sessions Sessions, entity entities.Entity, expectedVersion int64) error
	FindParticipation(
		ctx context.Context,
		sessions Sessions,
		kind entities.Kind,
		entityID string,
		subjectID string,
	) (entities.Participation, bool, error)
	InsertParticipation(ctx context.Context, sessions Sessions, participation entities.Participation) error
	UpdateParticipation(ctx context.Context, sessions Sessions, participation entities.Participation) error
	ListParticipations(ctx context.Context, sessions Sessions, kind entities.Kind, entityID string) ([]entities.Participation, error)
	HasStatTicket(ctx context.Context, sessions Sessions, entityID string, subjectID string) (bool, error)
	InsertStatTicket(ctx context.Context, sessions Sessions, ticket entities.StatTicket) error
}

// Reader serves committed state outside any unit of work.
type Reader interface {
	GetEntity(ctx context.Context, kind entities.Kind, entityID string) (entities.Entity, error)
	// ListDueForClosure returns open entities whose deadline is at or before now.
	ListDueForClosure(ctx context.Context, kind entities.Kind, now time.Time, limit int) ([]entities.Entity, error)
	// ListAwaitingDistribution returns PENDING entities that are closed or past their deadline.
	ListAwaitingDistribution(ctx context.Context, kind entities.Kind, now time.Time, limit int) ([]entities.Entity, error)
	ListEntityParticipations(ctx context.Context, kind entities.Kind, entityID string) ([]entities.Participation, error)
}

type PostingKind string

const (
	PostingResearchUpload      PostingKind = "RESEARCH_UPLOAD"
	PostingResearchParticipate PostingKind = "RESEARCH_PARTICIPATE"
	PostingResearchPullUp      PostingKind = "RESEARCH_PULLUP"
	PostingResearchEdit        PostingKind = "RESEARCH_EDIT"
	PostingDeletedParticipate  PostingKind = "DELETED_RESEARCH_PARTICIPATE"
	PostingInquireVoteStat     PostingKind = "INQUIRE_VOTE_STAT"
	PostingOther               PostingKind = "ETC"
)

// Posting is one credit change. Reference is stored as the entry's related
// id and is what FindPosting looks up on a rerun.
type Posting struct {
	SubjectID string
	Delta     int64
	Kind      PostingKind
	Reason    string
	Reference string
}

type PostingReceipt struct {
	EntryID          string
	Delta            int64
	ResultingBalance int64
}

// Ledger posts credit changes on the users store session of the same unit.
// The users store commits before the content stores, so a posting may
// survive a unit whose content writes were lost; FindPosting lets the rerun
// rebuild those writes instead of posting twice.
type Ledger interface {
	Post(ctx context.Context, sessions Sessions, posting Posting) (PostingReceipt, error)
	FindPosting(ctx context.Context, sessions Sessions, subjectID string, reference string, kind PostingKind) (PostingReceipt, bool, error)
}

type DistributionOutcome struct {
	Winners            []string
	AlreadyDistributed bool
}

// Distributor runs the lottery of a closed entity in its own unit of work.
type Distributor interface {
	Distribute(ctx context.Context, kind entities.Kind, entityID string) (DistributionOutcome, error)
}

// Timers is the optional in-process deadline trigger.
type Timers interface {
	Schedule(kind entities.Kind, entityID string, at time.Time)
	Cancel(kind entities.Kind, entityID string) bool
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type Metrics interface {
	SweepRun(outcome string)
}
