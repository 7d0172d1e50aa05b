package storage

import (
	"context"
	"database/sql"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// GroupRepo is the read/write surface for Group rows, which carry an
// optional dedupe-horizon override consumed by internal/settings.
type GroupRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewGroupRepo(db *DB, queue *WriterQueue) *GroupRepo {
	return &GroupRepo{db: db, queue: queue}
}

func (r *GroupRepo) Get(ctx context.Context, id int64) (*types.Group, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT id, name, description, dedupe_horizon_minutes_override, created_at
		FROM groups WHERE id = ?`, id)

	var g types.Group
	var override sql.NullInt64
	err := row.Scan(&g.ID, &g.Name, &g.Description, &override, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("group not found")
	}
	if err != nil {
		return nil, mapSQLiteErr("get group", err)
	}
	if override.Valid {
		v := int(override.Int64)
		g.DedupeHorizonMinutesOverride = &v
	}
	return &g, nil
}

func (r *GroupRepo) List(ctx context.Context) ([]types.Group, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, name, description, dedupe_horizon_minutes_override, created_at
		FROM groups ORDER BY id ASC`)
	if err != nil {
		return nil, mapSQLiteErr("list groups", err)
	}
	defer rows.Close()

	var out []types.Group
	for rows.Next() {
		var g types.Group
		var override sql.NullInt64
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &override, &g.CreatedAt); err != nil {
			return nil, mapSQLiteErr("list groups", err)
		}
		if override.Valid {
			v := int(override.Int64)
			g.DedupeHorizonMinutesOverride = &v
		}
		out = append(out, g)
	}
	return out, mapSQLiteErr("list groups", rows.Err())
}

func (r *GroupRepo) Create(ctx context.Context, g *types.Group) (int64, error) {
	var id int64
	err := r.queue.Submit(ctx, func(tx *sql.Tx) error {
		var override any
		if g.DedupeHorizonMinutesOverride != nil {
			override = *g.DedupeHorizonMinutesOverride
		}
		res, err := tx.Exec(`
			INSERT INTO groups (name, description, dedupe_horizon_minutes_override, created_at)
			VALUES (?, ?, ?, ?)`,
			g.Name, g.Description, override, g.CreatedAt)
		if err != nil {
			return mapSQLiteErr("create group", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (r *GroupRepo) SetDedupeHorizonOverride(ctx context.Context, id int64, minutes *int) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		var override any
		if minutes != nil {
			override = *minutes
		}
		res, err := tx.Exec(`UPDATE groups SET dedupe_horizon_minutes_override = ? WHERE id = ?`, override, id)
		if err != nil {
			return mapSQLiteErr("set group dedupe horizon override", err)
		}
		return checkRowsAffected(res, "set group dedupe horizon override")
	})
}
