package db

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"pollstack/internal/platform/txcoord"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return NewStore(txcoord.StoreUsers, gdb, nil), mock
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want txcoord.Kind
	}{
		{"not found", gorm.ErrRecordNotFound, txcoord.KindNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, txcoord.KindConflict},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, txcoord.KindTransient},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, txcoord.KindTransient},
		{"connection failure", &pgconn.PgError{Code: "08006"}, txcoord.KindTransient},
		{"check violation", &pgconn.PgError{Code: "23514"}, txcoord.KindFatal},
		{"deadline", context.DeadlineExceeded, txcoord.KindTransient},
		{"unknown", errors.New("boom"), txcoord.KindFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(txcoord.StoreUsers, "op", tc.err)
			assert.Equal(t, tc.want, txcoord.KindOf(err))
			assert.ErrorIs(t, err, tc.err)
		})
	}
	assert.NoError(t, Classify(txcoord.StoreUsers, "op", nil))
}

func TestClassifyKeepsExistingStoreError(t *testing.T) {
	original := txcoord.NewStoreError(txcoord.StoreVote, txcoord.KindConflict, "save", errors.New("version moved"))
	assert.Same(t, original, Classify(txcoord.StoreUsers, "commit", original))
}

func TestSessionCommitAndAbort(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()
	sess, err := store.OpenSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Commit(context.Background()))
	assert.ErrorIs(t, sess.Abort(context.Background()), txcoord.ErrSessionClosed)

	mock.ExpectBegin()
	mock.ExpectRollback()
	sess, err = store.OpenSession(context.Background())
	require.NoError(t, err)
	tx, err := Tx(sess)
	require.NoError(t, err)
	assert.NotNil(t, tx)
	require.NoError(t, sess.Abort(context.Background()))

	_, err = Tx(sess)
	assert.ErrorIs(t, err, txcoord.ErrSessionClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCommitFailureIsClassified(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001"})
	sess, err := store.OpenSession(context.Background())
	require.NoError(t, err)

	err = sess.Commit(context.Background())
	assert.Equal(t, txcoord.KindTransient, txcoord.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@host:5432/users?sslmode=disable", migrateURL("postgres://u:p@host:5432/users?sslmode=disable"))
	assert.Equal(t, "pgx5://host/db", migrateURL("postgresql://host/db"))
	assert.Equal(t, "pgx5://host/db", migrateURL("pgx5://host/db"))
}

func TestEveryStoreHasMigrations(t *testing.T) {
	for _, store := range []txcoord.StoreID{txcoord.StoreUsers, txcoord.StorePayments, txcoord.StoreResearch, txcoord.StoreVote} {
		files, err := Migrations(store)
		require.NoError(t, err)
		ups, err := fs.Glob(files, "*.up.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, ups, "store %s", store)
	}
}

func TestPostgresPingWrapsDriverError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mock.ExpectPing()
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	down := errors.New("connection refused")
	mock.ExpectPing().WillReturnError(down)
	err = (&Postgres{DB: gdb}).Ping(context.Background())
	require.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "ping postgres")
}
