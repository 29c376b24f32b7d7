package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"pollstack/internal/platform/txcoord"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFS embed.FS

// Migrations returns the embedded migration files of one store.
func Migrations(store txcoord.StoreID) (fs.FS, error) {
	return fs.Sub(migrationFS, "migrations/"+string(store))
}

// Migrate applies every pending up migration of store against dsn.
func Migrate(dsn string, store txcoord.StoreID) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("migrate %s: dsn is required", store)
	}
	src, err := iofs.New(migrationFS, "migrations/"+string(store))
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", store, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("init %s migrator: %w", store, err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply %s migrations: %w", store, err)
	}
	return nil
}

func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
