package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// SettingRepo is the read/write surface for the settings table,
// internal/settings.Resolver's storage backend.
type SettingRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewSettingRepo(db *DB, queue *WriterQueue) *SettingRepo {
	return &SettingRepo{db: db, queue: queue}
}

func (r *SettingRepo) Get(ctx context.Context, key string) (*types.Setting, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `SELECT key, value_json, updated_at FROM settings WHERE key = ?`, key)
	var s types.Setting
	var value []byte
	err := row.Scan(&s.Key, &value, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("setting %q not found", key)
	}
	if err != nil {
		return nil, mapSQLiteErr("get setting", err)
	}
	s.Value = value
	return &s, nil
}

func (r *SettingRepo) List(ctx context.Context) ([]types.Setting, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `SELECT key, value_json, updated_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, mapSQLiteErr("list settings", err)
	}
	defer rows.Close()

	var out []types.Setting
	for rows.Next() {
		var s types.Setting
		var value []byte
		if err := rows.Scan(&s.Key, &value, &s.UpdatedAt); err != nil {
			return nil, mapSQLiteErr("list settings", err)
		}
		s.Value = value
		out = append(out, s)
	}
	return out, mapSQLiteErr("list settings", rows.Err())
}

// SeedIfMissingTx inserts key with value only if it does not already
// exist, the seed-and-backfill routine internal/settings runs at boot for
// every default in defaults.yaml.
func (r *SettingRepo) SeedIfMissingTx(tx *sql.Tx, key string, value json.RawMessage, updatedAt any) error {
	_, err := tx.Exec(`INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO NOTHING`, key, []byte(value), updatedAt)
	return mapSQLiteErr("seed setting", err)
}

func (r *SettingRepo) Submit(ctx context.Context, fn func(*sql.Tx) error) error {
	return r.queue.Submit(ctx, fn)
}

func (r *SettingRepo) Set(ctx context.Context, key string, value json.RawMessage, updatedAt any) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
			key, []byte(value), updatedAt)
		return mapSQLiteErr("set setting", err)
	})
}

// Delete removes key entirely, used by internal/auth's bootstrap-token
// rollback: a failed output-file write must leave no digest row at all, so
// the next boot's Get sees a fresh NotFound and retries generation rather
// than mistaking a rolled-back row for an already-issued token.
func (r *SettingRepo) Delete(ctx context.Context, key string) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM settings WHERE key = ?`, key)
		return mapSQLiteErr("delete setting", err)
	})
}
