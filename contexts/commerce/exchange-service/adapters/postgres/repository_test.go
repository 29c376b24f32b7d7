package postgresadapter

import (
	"context"
	"testing"
	"time"

	"pollstack/contexts/commerce/exchange-service/domain/entities"
	"pollstack/internal/platform/db"
	"pollstack/internal/platform/txcoord"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return gdb, mock
}

func TestFindOrderByKeyMissingIsNotAnError(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "exchange_orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))
	mock.ExpectRollback()

	sess, err := db.NewStore(txcoord.StorePayments, gdb, nil).OpenSession(ctx)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	_, found, err := repo.FindOrderByKey(ctx, txcoord.NewSessions(sess), "u-1", "key-1")
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if found {
		t.Fatalf("expected no order")
	}
	if err := sess.Abort(ctx); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertOrderDuplicateIsConflict(t *testing.T) {
	gdb, mock := newMockGorm(t)
	repo := NewRepository(gdb, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "exchange_orders"`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	sess, err := db.NewStore(txcoord.StorePayments, gdb, nil).OpenSession(ctx)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	err = repo.InsertOrder(ctx, txcoord.NewSessions(sess), entities.Order{
		OrderID:        "o-1",
		SubjectID:      "u-1",
		ProductID:      "coffee",
		Amount:         30,
		IdempotencyKey: "key-1",
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if txcoord.KindOf(err) != txcoord.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	_ = sess.Abort(ctx)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
