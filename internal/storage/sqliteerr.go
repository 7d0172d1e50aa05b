package storage

import (
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/cuemby/tca/internal/errs"
)

// mapSQLiteErr remaps a raw driver error to an internal/errs.Error once,
// centrally, inspecting the SQLite extended error code rather than parsing
// driver-specific message text at every repository call site (SPEC_FULL.md
// §4.2). Non-SQLite errors (e.g. sql.ErrNoRows, context cancellation) pass
// through unchanged so callers can keep using errors.Is on them directly.
func mapSQLiteErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	// Busy/locked are base result codes (sqlite3.ErrNo), not extended ones;
	// check them against Code before the ExtendedCode switch below.
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return errs.Transient(err, "%s: database busy", op)
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return errs.Conflict("%s: foreign key violation: %v", op, err)
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return errs.Conflict("%s: uniqueness violation: %v", op, err)
	case sqlite3.ErrConstraintNotNull:
		return errs.Validation("%s: not-null violation: %v", op, err)
	case sqlite3.ErrConstraintCheck:
		return errs.Validation("%s: check constraint violation: %v", op, err)
	default:
		return errs.Fatal(err, "%s: sqlite error", op)
	}
}
