package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/migrations"
)

// Migrate applies every pending migration in migrations/ to db's write
// connection via golang-migrate's sqlite3 database driver and iofs source
// driver (SPEC_FULL.md §4.1). It is the first startup step spec.md §4.4
// names; nothing else may touch the database before it returns.
func Migrate(db *DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return errs.Fatal(err, "load embedded migrations")
	}

	driver, err := sqlite3.WithInstance(db.WriteConn, &sqlite3.Config{})
	if err != nil {
		return errs.Fatal(err, "create sqlite migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return errs.Fatal(err, "create migrator")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errs.Fatal(err, "apply migrations")
	}

	return nil
}

// MigrationVersion reports the schema version currently applied, used by
// cmd/tca-migrate's status subcommand.
func MigrationVersion(db *DB) (version uint, dirty bool, err error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, false, fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.WriteConn, &sqlite3.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return 0, false, fmt.Errorf("create migrator: %w", err)
	}
	return m.Version()
}
