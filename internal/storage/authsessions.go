package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// AuthSessionRepo stores transient OTP login-flow state. Expired rows must
// never be returned by Get, matching the domain invariant on
// types.AuthSessionState.
type AuthSessionRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewAuthSessionRepo(db *DB, queue *WriterQueue) *AuthSessionRepo {
	return &AuthSessionRepo{db: db, queue: queue}
}

func (r *AuthSessionRepo) Get(ctx context.Context, sessionID string, now time.Time) (*types.AuthSessionState, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT session_id, phone_number, status, expires_at, upstream_session_ct, created_at, updated_at
		FROM auth_sessions WHERE session_id = ? AND expires_at > ?`, sessionID, now)

	var s types.AuthSessionState
	err := row.Scan(&s.SessionID, &s.PhoneNumber, &s.Status, &s.ExpiresAt, &s.UpstreamSessionCT, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("auth session %q not found or expired", sessionID)
	}
	if err != nil {
		return nil, mapSQLiteErr("get auth session", err)
	}
	return &s, nil
}

func (r *AuthSessionRepo) Create(ctx context.Context, s *types.AuthSessionState) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO auth_sessions (session_id, phone_number, status, expires_at, upstream_session_ct, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.SessionID, s.PhoneNumber, s.Status, s.ExpiresAt, s.UpstreamSessionCT, s.CreatedAt, s.UpdatedAt)
		return mapSQLiteErr("create auth session", err)
	})
}

func (r *AuthSessionRepo) UpdateStatus(ctx context.Context, sessionID string, status types.AuthSessionStatus, upstreamSessionCT []byte, at time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE auth_sessions SET status = ?, upstream_session_ct = COALESCE(?, upstream_session_ct), updated_at = ?
			WHERE session_id = ?`, status, upstreamSessionCT, at, sessionID)
		if err != nil {
			return mapSQLiteErr("update auth session status", err)
		}
		return checkRowsAffected(res, "update auth session status")
	})
}

// DeleteExpired prunes expired sessions inside the caller's transaction.
// Nothing in the module calls it; the retention prune leaves auth_sessions
// alone, and Get already hides expired rows.
func (r *AuthSessionRepo) DeleteExpired(tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.Exec(`DELETE FROM auth_sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, mapSQLiteErr("delete expired auth sessions", err)
	}
	return res.RowsAffected()
}
