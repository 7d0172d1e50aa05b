package storage

import (
	"context"
	"database/sql"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// ChannelRepo is the read/write surface for Channel rows. It satisfies
// internal/scheduler.ChannelStore's ListSchedulable half; GetState is
// satisfied by ChannelStateRepo, and internal/app's channelStore adapter
// composes both into one value the scheduler sees as a single ChannelStore.
type ChannelRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewChannelRepo(db *DB, queue *WriterQueue) *ChannelRepo {
	return &ChannelRepo{db: db, queue: queue}
}

func (r *ChannelRepo) Get(ctx context.Context, id int64) (*types.Channel, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT id, account_id, upstream_channel_id, name, username, is_enabled, group_id, created_at, updated_at
		FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

func (r *ChannelRepo) List(ctx context.Context) ([]types.Channel, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, account_id, upstream_channel_id, name, username, is_enabled, group_id, created_at, updated_at
		FROM channels ORDER BY id ASC`)
	if err != nil {
		return nil, mapSQLiteErr("list channels", err)
	}
	defer rows.Close()
	return scanChannelRowsAll(rows)
}

// ListSchedulable returns channels with is_enabled=true whose owning
// account is not paused, per spec.md §4.4 step 1.
func (r *ChannelRepo) ListSchedulable(ctx context.Context) ([]types.Channel, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT c.id, c.account_id, c.upstream_channel_id, c.name, c.username, c.is_enabled, c.group_id, c.created_at, c.updated_at
		FROM channels c
		JOIN accounts a ON a.id = c.account_id
		WHERE c.is_enabled = 1 AND a.paused_at IS NULL
		ORDER BY c.id ASC`)
	if err != nil {
		return nil, mapSQLiteErr("list schedulable channels", err)
	}
	defer rows.Close()
	return scanChannelRowsAll(rows)
}

func (r *ChannelRepo) ListByGroup(ctx context.Context, groupID int64) ([]types.Channel, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, account_id, upstream_channel_id, name, username, is_enabled, group_id, created_at, updated_at
		FROM channels WHERE group_id = ? ORDER BY id ASC`, groupID)
	if err != nil {
		return nil, mapSQLiteErr("list channels by group", err)
	}
	defer rows.Close()
	return scanChannelRowsAll(rows)
}

func (r *ChannelRepo) Create(ctx context.Context, c *types.Channel) (int64, error) {
	var id int64
	err := r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO channels (account_id, upstream_channel_id, name, username, is_enabled, group_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.AccountID, c.UpstreamChannelID, c.Name, c.Username, c.IsEnabled, nullInt64(c.GroupID), c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return mapSQLiteErr("create channel", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (r *ChannelRepo) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE channels SET is_enabled = ? WHERE id = ?`, enabled, id)
		if err != nil {
			return mapSQLiteErr("set channel enabled", err)
		}
		return checkRowsAffected(res, "set channel enabled")
	})
}

// CountByEnabled implements part of internal/metrics.Snapshot.
func (r *ChannelRepo) CountByEnabled(ctx context.Context) (enabled, disabled int, err error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_enabled THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT is_enabled THEN 1 ELSE 0 END), 0)
		FROM channels`)
	err = row.Scan(&enabled, &disabled)
	return enabled, disabled, mapSQLiteErr("count channels by enabled", err)
}

func scanChannel(row *sql.Row) (*types.Channel, error) {
	var c types.Channel
	var groupID sql.NullInt64
	err := row.Scan(&c.ID, &c.AccountID, &c.UpstreamChannelID, &c.Name, &c.Username, &c.IsEnabled, &groupID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("channel not found")
	}
	if err != nil {
		return nil, mapSQLiteErr("scan channel", err)
	}
	if groupID.Valid {
		c.GroupID = &groupID.Int64
	}
	return &c, nil
}

func scanChannelRowsAll(rows *sql.Rows) ([]types.Channel, error) {
	var out []types.Channel
	for rows.Next() {
		var c types.Channel
		var groupID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.AccountID, &c.UpstreamChannelID, &c.Name, &c.Username, &c.IsEnabled, &groupID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, mapSQLiteErr("scan channel rows", err)
		}
		if groupID.Valid {
			c.GroupID = &groupID.Int64
		}
		out = append(out, c)
	}
	return out, mapSQLiteErr("scan channel rows", rows.Err())
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
