package memory

import (
	"context"

	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/lottery-service/domain/errors"
	"pollstack/contexts/credit-ledger/lottery-service/ports"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/txcoord"
)

const collectionDraws = "lottery_draws"

// Store persists draw records in the shared users memstore.
type Store struct {
	users *memstore.Store
}

func NewStore(users *memstore.Store) *Store {
	return &Store{users: users}
}

func drawKey(kind entities.EntityKind, entityID string) string {
	return string(kind) + ":" + entityID
}

func (s *Store) FindDraw(_ context.Context, sessions ports.Sessions, kind entities.EntityKind, entityID string) (entities.Draw, bool, error) {
	sess, err := sessions.Get(ports.StoreUsers)
	if err != nil {
		return entities.Draw{}, false, err
	}
	memSess, err := memstore.AsSession(sess)
	if err != nil {
		return entities.Draw{}, false, err
	}
	draw, err := memstore.Get[entities.Draw](memSess, collectionDraws, drawKey(kind, entityID))
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Draw{}, false, nil
		}
		return entities.Draw{}, false, err
	}
	return draw, true, nil
}

func (s *Store) InsertDraw(_ context.Context, sessions ports.Sessions, draw entities.Draw) error {
	sess, err := sessions.Get(ports.StoreUsers)
	if err != nil {
		return err
	}
	memSess, err := memstore.AsSession(sess)
	if err != nil {
		return err
	}
	return memSess.Insert(collectionDraws, drawKey(draw.EntityKind, draw.EntityID), draw)
}

func (s *Store) GetDraw(_ context.Context, kind entities.EntityKind, entityID string) (entities.Draw, error) {
	draw, err := memstore.Read[entities.Draw](s.users, collectionDraws, drawKey(kind, entityID))
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Draw{}, domainerrors.ErrDrawNotFound
		}
		return entities.Draw{}, err
	}
	return draw, nil
}

var (
	_ ports.Draws      = (*Store)(nil)
	_ ports.DrawReader = (*Store)(nil)
)
