package storage

import (
	"context"
	"database/sql"

	"github.com/cuemby/tca/internal/types"
)

// IngestErrorRepo stores IngestError audit rows, written by
// internal/ingest/errorcapture.go on any recoverable stage failure.
type IngestErrorRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewIngestErrorRepo(db *DB, queue *WriterQueue) *IngestErrorRepo {
	return &IngestErrorRepo{db: db, queue: queue}
}

func (r *IngestErrorRepo) Create(ctx context.Context, e *types.IngestError) (int64, error) {
	var id int64
	err := r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO ingest_errors (channel_id, stage, error_code, error_message, payload_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			nullInt64(e.ChannelID), e.Stage, e.ErrorCode, e.ErrorMessage, e.PayloadRef, e.CreatedAt)
		if err != nil {
			return mapSQLiteErr("create ingest error", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (r *IngestErrorRepo) ListByChannel(ctx context.Context, channelID int64, limit int) ([]types.IngestError, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, channel_id, stage, error_code, error_message, payload_ref, created_at
		FROM ingest_errors WHERE channel_id = ? ORDER BY id DESC LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, mapSQLiteErr("list ingest errors by channel", err)
	}
	defer rows.Close()
	return scanIngestErrorRows(rows)
}

func (r *IngestErrorRepo) DeleteOlderThan(tx *sql.Tx, cutoff any, batchSize int) (int64, error) {
	res, err := tx.Exec(`
		DELETE FROM ingest_errors WHERE id IN (
			SELECT id FROM ingest_errors WHERE created_at < ? ORDER BY id ASC LIMIT ?
		)`, cutoff, batchSize)
	if err != nil {
		return 0, mapSQLiteErr("delete old ingest errors", err)
	}
	return res.RowsAffected()
}

func scanIngestErrorRows(rows *sql.Rows) ([]types.IngestError, error) {
	var out []types.IngestError
	for rows.Next() {
		var e types.IngestError
		var channelID sql.NullInt64
		if err := rows.Scan(&e.ID, &channelID, &e.Stage, &e.ErrorCode, &e.ErrorMessage, &e.PayloadRef, &e.CreatedAt); err != nil {
			return nil, mapSQLiteErr("scan ingest error rows", err)
		}
		if channelID.Valid {
			e.ChannelID = &channelID.Int64
		}
		out = append(out, e)
	}
	return out, mapSQLiteErr("scan ingest error rows", rows.Err())
}
