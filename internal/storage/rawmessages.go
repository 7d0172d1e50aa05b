package storage

import (
	"context"
	"database/sql"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// RawMessageRepo stores the unmodified upstream payload captured before
// normalization. (channel_id, upstream_message_id) is unique, enforced by a
// SQLite unique index and remapped to errs.Conflict by sqliteerr.go.
type RawMessageRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewRawMessageRepo(db *DB, queue *WriterQueue) *RawMessageRepo {
	return &RawMessageRepo{db: db, queue: queue}
}

func (r *RawMessageRepo) Create(ctx context.Context, m *types.RawMessage) (int64, error) {
	var id int64
	err := r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO raw_messages (channel_id, upstream_message_id, payload_json, created_at)
			VALUES (?, ?, ?, ?)`,
			m.ChannelID, m.UpstreamMessageID, []byte(m.PayloadJSON), m.CreatedAt)
		if err != nil {
			return mapSQLiteErr("create raw message", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (r *RawMessageRepo) GetByUpstreamMessageID(ctx context.Context, channelID, upstreamMessageID int64) (*types.RawMessage, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT id, channel_id, upstream_message_id, payload_json, created_at
		FROM raw_messages WHERE channel_id = ? AND upstream_message_id = ?`, channelID, upstreamMessageID)

	var m types.RawMessage
	var payload []byte
	err := row.Scan(&m.ID, &m.ChannelID, &m.UpstreamMessageID, &payload, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("raw message not found")
	}
	if err != nil {
		return nil, mapSQLiteErr("get raw message", err)
	}
	m.PayloadJSON = payload
	return &m, nil
}

// DeleteOlderThan is the retention-prune step for raw_messages
// (spec.md §4.6 step naming raw_messages_days), run in batches of at most
// batchSize rows inside the caller's single write transaction.
func (r *RawMessageRepo) DeleteOlderThan(tx *sql.Tx, cutoff any, batchSize int) (int64, error) {
	res, err := tx.Exec(`
		DELETE FROM raw_messages WHERE id IN (
			SELECT id FROM raw_messages WHERE created_at < ? ORDER BY id ASC LIMIT ?
		)`, cutoff, batchSize)
	if err != nil {
		return 0, mapSQLiteErr("delete old raw messages", err)
	}
	return res.RowsAffected()
}
