package ports

import (
	"context"
	"time"

	"pollstack/contexts/commerce/exchange-service/domain/entities"
	"pollstack/internal/platform/txcoord"
)

type (
	StoreID  = txcoord.StoreID
	Sessions = txcoord.Sessions
)

const (
	StoreUsers    = txcoord.StoreUsers
	StorePayments = txcoord.StorePayments
)

type UnitOfWork interface {
	Run(ctx context.Context, stores []StoreID, fn func(context.Context, Sessions) error) error
}

type Repository interface {
	FindOrderByKey(ctx context.Context, sessions Sessions, subjectID string, idempotencyKey string) (entities.Order, bool, error)
	InsertOrder(ctx context.Context, sessions Sessions, order entities.Order) error
}

type Reader interface {
	ListOrders(ctx context.Context, subjectID string, limit int) ([]entities.Order, error)
}

// Charge debits Amount. Reference is stable across retries of the same
// request and is stored on the ledger entry.
type Charge struct {
	SubjectID string
	Amount    int64
	Reason    string
	Reference string
}

type Receipt struct {
	EntryID          string
	ResultingBalance int64
}

// Ledger debits the subject on the users store session of the same unit.
type Ledger interface {
	Charge(ctx context.Context, sessions Sessions, charge Charge) (Receipt, error)
	FindCharge(ctx context.Context, sessions Sessions, subjectID string, reference string) (Receipt, bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
