package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// ChannelStateRepo is the read/write surface for the 1:1 ChannelState row.
// GetState satisfies the remaining half of internal/scheduler.ChannelStore.
type ChannelStateRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewChannelStateRepo(db *DB, queue *WriterQueue) *ChannelStateRepo {
	return &ChannelStateRepo{db: db, queue: queue}
}

// GetState returns the polling state for a channel, or a zero-value state
// if one has never been created (a never-polled channel), matching the
// scheduler's "no last_success_at means immediately eligible" rule.
func (r *ChannelStateRepo) GetState(ctx context.Context, channelID int64) (*types.ChannelState, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT channel_id, cursor_json, paused_until, last_success_at, updated_at
		FROM channel_state WHERE channel_id = ?`, channelID)

	var s types.ChannelState
	var cursorJSON []byte
	var pausedUntil, lastSuccessAt sql.NullTime
	err := row.Scan(&s.ChannelID, &cursorJSON, &pausedUntil, &lastSuccessAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return &types.ChannelState{ChannelID: channelID}, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("get channel state", err)
	}
	if len(cursorJSON) > 0 {
		if err := json.Unmarshal(cursorJSON, &s.Cursor); err != nil {
			return nil, errs.Fatal(err, "decode cursor for channel %d", channelID)
		}
	}
	if pausedUntil.Valid {
		s.PausedUntil = &pausedUntil.Time
	}
	if lastSuccessAt.Valid {
		s.LastSuccessAt = &lastSuccessAt.Time
	}
	return &s, nil
}

// Upsert writes the full channel state row, creating it on first poll.
func (r *ChannelStateRepo) Upsert(ctx context.Context, s *types.ChannelState) error {
	cursorJSON, err := json.Marshal(s.Cursor)
	if err != nil {
		return errs.Validation("encode cursor: %v", err)
	}
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO channel_state (channel_id, cursor_json, paused_until, last_success_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (channel_id) DO UPDATE SET
				cursor_json = excluded.cursor_json,
				paused_until = excluded.paused_until,
				last_success_at = excluded.last_success_at,
				updated_at = excluded.updated_at`,
			s.ChannelID, cursorJSON, nullTime(s.PausedUntil), nullTime(s.LastSuccessAt), s.UpdatedAt)
		return mapSQLiteErr("upsert channel state", err)
	})
}

// AdvanceCursor records a successful poll's new cursor and clears any pause,
// per the ingest pipeline's "advance cursor / last_success_at" step.
func (r *ChannelStateRepo) AdvanceCursor(ctx context.Context, channelID int64, cursor types.Cursor, at time.Time) error {
	cursorJSON, err := json.Marshal(cursor)
	if err != nil {
		return errs.Validation("encode cursor: %v", err)
	}
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO channel_state (channel_id, cursor_json, paused_until, last_success_at, updated_at)
			VALUES (?, ?, NULL, ?, ?)
			ON CONFLICT (channel_id) DO UPDATE SET
				cursor_json = excluded.cursor_json,
				paused_until = NULL,
				last_success_at = excluded.last_success_at,
				updated_at = excluded.updated_at`,
			channelID, cursorJSON, at, at)
		return mapSQLiteErr("advance cursor", err)
	})
}

// SetPausedUntil records a flood-wait cool-down, per
// internal/ingest/floodwait.go.
func (r *ChannelStateRepo) SetPausedUntil(ctx context.Context, channelID int64, until time.Time, at time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO channel_state (channel_id, cursor_json, paused_until, last_success_at, updated_at)
			VALUES (?, '{}', ?, NULL, ?)
			ON CONFLICT (channel_id) DO UPDATE SET
				paused_until = excluded.paused_until,
				updated_at = excluded.updated_at`,
			channelID, until, at)
		return mapSQLiteErr("set paused until", err)
	})
}
