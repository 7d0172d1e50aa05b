package storage

import (
	"database/sql"
	"fmt"
	"runtime"

	_ "github.com/mattn/go-sqlite3"
)

// DB holds the two *sql.DB handles tca uses against one SQLite file: a
// multi-connection read pool and a single-connection write engine. SQLite's
// own single-writer rule and our logical writer queue (queue.go) reinforce
// each other. Apart from Migrate and MigrationVersion (migrate.go), which
// hand WriteConn to the migration driver, and Close, nothing outside
// WriterQueue uses WriteConn directly.
type DB struct {
	ReadPool  *sql.DB
	WriteConn *sql.DB
	path      string
}

// Open opens both handles against path, applying the pragmas spec.md §4.1
// and SPEC_FULL.md §4.1 require: WAL journaling, foreign key enforcement,
// and a busy timeout so a momentarily-locked file blocks instead of
// erroring. Pragmas are set once here, via DSN query parameters, not
// per-transaction.
func Open(path string) (*DB, error) {
	readDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	readPool, err := sql.Open("sqlite3", readDSN)
	if err != nil {
		return nil, fmt.Errorf("open read pool: %w", err)
	}
	readPool.SetMaxOpenConns(runtime.GOMAXPROCS(0) * 2)

	writeDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	writeConn, err := sql.Open("sqlite3", writeDSN)
	if err != nil {
		readPool.Close()
		return nil, fmt.Errorf("open write engine: %w", err)
	}
	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)

	if err := readPool.Ping(); err != nil {
		readPool.Close()
		writeConn.Close()
		return nil, fmt.Errorf("ping read pool: %w", err)
	}
	if err := writeConn.Ping(); err != nil {
		readPool.Close()
		writeConn.Close()
		return nil, fmt.Errorf("ping write engine: %w", err)
	}

	return &DB{ReadPool: readPool, WriteConn: writeConn, path: path}, nil
}

// Path returns the underlying SQLite file path, used by internal/ops.Backup.
func (db *DB) Path() string { return db.path }

// Close closes both handles. Callers should drain the writer queue first.
func (db *DB) Close() error {
	werr := db.WriteConn.Close()
	rerr := db.ReadPool.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
