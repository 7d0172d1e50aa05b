package storage

import (
	"context"
	"database/sql"

	"github.com/cuemby/tca/internal/types"
)

// PollJobRepo stores PollJob rows, the unit of work the scheduler hands to
// the ingest pipeline. It satisfies internal/scheduler.PollEnqueuer.
type PollJobRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewPollJobRepo(db *DB, queue *WriterQueue) *PollJobRepo {
	return &PollJobRepo{db: db, queue: queue}
}

// Enqueue implements internal/scheduler.PollEnqueuer.
func (r *PollJobRepo) Enqueue(ctx context.Context, channelID int64, correlationID string) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO poll_jobs (channel_id, correlation_id, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
			channelID, correlationID)
		return mapSQLiteErr("enqueue poll job", err)
	})
}

// ListPending returns queued poll jobs oldest-first, for the ingest
// pipeline's consumer loop.
func (r *PollJobRepo) ListPending(ctx context.Context, limit int) ([]types.PollJob, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, channel_id, correlation_id, created_at FROM poll_jobs ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, mapSQLiteErr("list pending poll jobs", err)
	}
	defer rows.Close()

	var out []types.PollJob
	for rows.Next() {
		var j types.PollJob
		if err := rows.Scan(&j.ID, &j.ChannelID, &j.CorrelationID, &j.CreatedAt); err != nil {
			return nil, mapSQLiteErr("list pending poll jobs", err)
		}
		out = append(out, j)
	}
	return out, mapSQLiteErr("list pending poll jobs", rows.Err())
}

// Delete removes a poll job once the ingest pipeline has consumed it.
func (r *PollJobRepo) Delete(ctx context.Context, id int64) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM poll_jobs WHERE id = ?`, id)
		return mapSQLiteErr("delete poll job", err)
	})
}
