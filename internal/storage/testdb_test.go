package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDB opens a migrated, file-backed SQLite database in a fresh
// t.TempDir(), matching the teacher's t.TempDir()-per-test style
// (pkg/scheduler/scheduler_test.go, pkg/volume/local_test.go). An in-memory
// DSN is avoided because the read pool and write engine are separate *sql.DB
// handles that must see the same database file.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tca.db")

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func newTestQueue(t *testing.T, db *DB) *WriterQueue {
	t.Helper()
	q := NewWriterQueue(db, 16)
	q.Start()
	t.Cleanup(q.Stop)
	return q
}
