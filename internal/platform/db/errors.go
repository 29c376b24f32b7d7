package db

import (
	"context"
	"errors"
	"strings"

	"pollstack/internal/platform/txcoord"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Classify tags a gorm/pgx error with the store error kind the coordinator
// understands. A nil err stays nil.
func Classify(store txcoord.StoreID, op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *txcoord.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return txcoord.NewStoreError(store, kindOf(err), op, err)
}

func kindOf(err error) txcoord.Kind {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return txcoord.KindNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return txcoord.KindConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return txcoord.KindTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return txcoord.KindConflict
		case pgErr.Code == pgSerializationFailure,
			pgErr.Code == pgDeadlockDetected,
			pgErr.Code == pgLockNotAvailable:
			return txcoord.KindTransient
		case strings.HasPrefix(pgErr.Code, "08"):
			return txcoord.KindTransient
		}
		return txcoord.KindFatal
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return txcoord.KindTransient
	}
	return txcoord.KindFatal
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
