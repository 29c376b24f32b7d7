package memory

import (
	"context"
	"sort"

	"pollstack/contexts/commerce/exchange-service/domain/entities"
	"pollstack/contexts/commerce/exchange-service/ports"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/txcoord"
)

const collectionOrders = "exchange_orders"

// Store keeps exchange orders in the payments memstore keyed by subject
// and idempotency key.
type Store struct {
	payments *memstore.Store
}

func NewStore(payments *memstore.Store) *Store {
	return &Store{payments: payments}
}

func orderKey(subjectID string, idempotencyKey string) string {
	return subjectID + "|" + idempotencyKey
}

func (s *Store) session(sessions ports.Sessions) (*memstore.Session, error) {
	sess, err := sessions.Get(ports.StorePayments)
	if err != nil {
		return nil, err
	}
	return memstore.AsSession(sess)
}

func (s *Store) FindOrderByKey(_ context.Context, sessions ports.Sessions, subjectID string, idempotencyKey string) (entities.Order, bool, error) {
	sess, err := s.session(sessions)
	if err != nil {
		return entities.Order{}, false, err
	}
	order, err := memstore.Get[entities.Order](sess, collectionOrders, orderKey(subjectID, idempotencyKey))
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Order{}, false, nil
		}
		return entities.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) InsertOrder(_ context.Context, sessions ports.Sessions, order entities.Order) error {
	sess, err := s.session(sessions)
	if err != nil {
		return err
	}
	return sess.Insert(collectionOrders, orderKey(order.SubjectID, order.IdempotencyKey), order)
}

func (s *Store) ListOrders(_ context.Context, subjectID string, limit int) ([]entities.Order, error) {
	all, err := memstore.ReadAll[entities.Order](s.payments, collectionOrders)
	if err != nil {
		return nil, err
	}
	out := make([]entities.Order, 0, len(all))
	for _, order := range all {
		if order.SubjectID == subjectID {
			out = append(out, order)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ ports.Repository = (*Store)(nil)
	_ ports.Reader     = (*Store)(nil)
)
