package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pollstack/internal/platform/txcoord"

	"gorm.io/gorm"
)

// Store opens repeatable-read transactions on one database as coordinator sessions.
type Store struct {
	id     txcoord.StoreID
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(id txcoord.StoreID, db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{id: id, db: db, logger: logger}
}

func (s *Store) ID() txcoord.StoreID {
	return s.id
}

// DB is the non-transactional handle used for reads outside a unit of work.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) OpenSession(ctx context.Context) (txcoord.Session, error) {
	tx := s.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if tx.Error != nil {
		s.logger.Error("open store session failed",
			"event", "db_session_open_failed",
			"module", "internal/platform/db",
			"layer", "platform",
			"store", string(s.id),
			"error", tx.Error.Error(),
		)
		return nil, Classify(s.id, "open_session", tx.Error)
	}
	return &Session{store: s.id, tx: tx}, nil
}

type Session struct {
	mu     sync.Mutex
	store  txcoord.StoreID
	tx     *gorm.DB
	closed bool
}

func (s *Session) StoreID() txcoord.StoreID {
	return s.store
}

func (s *Session) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txcoord.NewStoreError(s.store, txcoord.KindFatal, "commit", txcoord.ErrSessionClosed)
	}
	s.closed = true
	return Classify(s.store, "commit", s.tx.Commit().Error)
}

func (s *Session) Abort(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return txcoord.ErrSessionClosed
	}
	s.closed = true
	err := s.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return txcoord.ErrSessionClosed
	}
	return err
}

// Tx returns the gorm transaction behind a session opened by Store.
func Tx(sess txcoord.Session) (*gorm.DB, error) {
	dbSess, ok := sess.(*Session)
	if !ok || dbSess == nil {
		return nil, fmt.Errorf("session %T is not a postgres session", sess)
	}
	dbSess.mu.Lock()
	defer dbSess.mu.Unlock()
	if dbSess.closed {
		return nil, txcoord.NewStoreError(dbSess.store, txcoord.KindFatal, "tx", txcoord.ErrSessionClosed)
	}
	return dbSess.tx, nil
}

// SessionTx resolves the store's session from a unit and returns its transaction.
func SessionTx(ctx context.Context, sessions txcoord.Sessions, store txcoord.StoreID) (*gorm.DB, error) {
	sess, err := sessions.Get(store)
	if err != nil {
		return nil, err
	}
	tx, err := Tx(sess)
	if err != nil {
		return nil, err
	}
	return tx.WithContext(ctx), nil
}
