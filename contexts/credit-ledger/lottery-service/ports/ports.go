package ports

import (
	"context"
	"time"

	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
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

// StoreFor maps an entity kind to the store owning its distribution flag.
func StoreFor(kind entities.EntityKind) StoreID {
	if kind == entities.EntityKindVote {
		return StoreVote
	}
	return StoreResearch
}

type UnitOfWork interface {
	Run(ctx context.Context, stores []StoreID, fn func(context.Context, Sessions) error) error
}

// RewardableEntity is the lottery's view of a research or vote.
type RewardableEntity struct {
	EntityID          string
	Kind              entities.EntityKind
	Title             string
	RewardPerWinner   int64
	WinnerCount       int
	DistributionState entities.DistributionState
	Closed            bool
}

// Entities reads and flags rewardable entities inside the distribution unit.
type Entities interface {
	LoadRewardable(ctx context.Context, sessions Sessions, kind entities.EntityKind, entityID string) (RewardableEntity, error)
	ListParticipants(ctx context.Context, sessions Sessions, kind entities.EntityKind, entityID string) ([]entities.Participant, error)
	MarkDistributed(ctx context.Context, sessions Sessions, kind entities.EntityKind, entityID string, at time.Time) error
}

type PayoutRequest struct {
	SubjectID  string
	Amount     int64
	EntityID   string
	EntityKind entities.EntityKind
	Reason     string
}

// Ledger credits winners on the users store session of the same unit.
type Ledger interface {
	CreditWinner(ctx context.Context, sessions Sessions, req PayoutRequest) (entities.Payout, error)
	FindPayout(
		ctx context.Context,
		sessions Sessions,
		subjectID string,
		entityID string,
		kind entities.EntityKind,
	) (entities.Payout, bool, error)
}

type Draws interface {
	FindDraw(ctx context.Context, sessions Sessions, kind entities.EntityKind, entityID string) (entities.Draw, bool, error)
	InsertDraw(ctx context.Context, sessions Sessions, draw entities.Draw) error
}

// DrawReader serves committed draws outside a unit of work.
type DrawReader interface {
	GetDraw(ctx context.Context, kind entities.EntityKind, entityID string) (entities.Draw, error)
}

// Publisher announces winners after the distribution unit committed.
type Publisher interface {
	PublishWinners(ctx context.Context, result entities.Result, title string, reward int64) error
}

// Coalescer collapses concurrent calls sharing a key into one execution.
type Coalescer interface {
	Do(key string, fn func() (any, error)) (any, error, bool)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type Metrics interface {
	PayoutMade(entityKind string)
}
