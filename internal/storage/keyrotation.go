package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// KeyRotationRepo backs the singleton key_rotation_state row, grounded on
// original_source/tests/auth/test_key_rotation_resume.py's
// KeyRotationRepository: begin_rotation, next_pending_account_id,
// mark_account_rotated, get_state, complete_if_finished. A crash mid-
// rotation resumes from LastRotatedAccountID+1 because completion is only
// set after every account has rotated.
type KeyRotationRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewKeyRotationRepo(db *DB, queue *WriterQueue) *KeyRotationRepo {
	return &KeyRotationRepo{db: db, queue: queue}
}

// Submit runs fn on the shared writer queue, letting the rotation walk
// combine a NextPendingAccountIDTx/MarkAccountRotatedTx pair and the
// account ciphertext rewrap into a single transaction per account.
func (r *KeyRotationRepo) Submit(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return r.queue.Submit(ctx, fn)
}

func (r *KeyRotationRepo) GetState(ctx context.Context) (*types.KeyRotationState, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT target_key_version, last_rotated_account_id, started_at, updated_at, completed_at
		FROM key_rotation_state WHERE id = 1`)

	var s types.KeyRotationState
	var completedAt sql.NullTime
	err := row.Scan(&s.TargetKeyVersion, &s.LastRotatedAccountID, &s.StartedAt, &s.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("no key rotation in progress")
	}
	if err != nil {
		return nil, mapSQLiteErr("get key rotation state", err)
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

// GetStateTx is GetState's transaction-scoped counterpart, used by the
// rotation walk so reading current progress and advancing it happen inside
// the same transaction as the account rewrap.
func (r *KeyRotationRepo) GetStateTx(tx *sql.Tx) (*types.KeyRotationState, error) {
	row := tx.QueryRow(`
		SELECT target_key_version, last_rotated_account_id, started_at, updated_at, completed_at
		FROM key_rotation_state WHERE id = 1`)

	var s types.KeyRotationState
	var completedAt sql.NullTime
	err := row.Scan(&s.TargetKeyVersion, &s.LastRotatedAccountID, &s.StartedAt, &s.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("no key rotation in progress")
	}
	if err != nil {
		return nil, mapSQLiteErr("get key rotation state", err)
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	return &s, nil
}

// BeginRotation starts a new rotation targeting keyVersion, or is a no-op
// if one is already in progress (completed_at IS NULL) targeting the same
// version — restarting the same rotation after a crash reuses its
// last_rotated_account_id rather than resetting progress.
func (r *KeyRotationRepo) BeginRotation(ctx context.Context, targetKeyVersion int, startedAt time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO key_rotation_state (id, target_key_version, last_rotated_account_id, started_at, updated_at, completed_at)
			VALUES (1, ?, 0, ?, ?, NULL)
			ON CONFLICT (id) DO UPDATE SET
				target_key_version = excluded.target_key_version,
				started_at = CASE WHEN key_rotation_state.completed_at IS NULL AND key_rotation_state.target_key_version = excluded.target_key_version
					THEN key_rotation_state.started_at ELSE excluded.started_at END,
				last_rotated_account_id = CASE WHEN key_rotation_state.completed_at IS NULL AND key_rotation_state.target_key_version = excluded.target_key_version
					THEN key_rotation_state.last_rotated_account_id ELSE 0 END,
				updated_at = excluded.updated_at,
				completed_at = NULL`,
			targetKeyVersion, startedAt, startedAt)
		return mapSQLiteErr("begin key rotation", err)
	})
}

// NextPendingAccountID returns the smallest account id greater than
// last_rotated_account_id, or nil if every account has rotated.
func (r *KeyRotationRepo) NextPendingAccountID(ctx context.Context, lastRotatedAccountID int64) (*int64, error) {
	var id int64
	err := r.db.ReadPool.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE id > ? ORDER BY id ASC LIMIT 1`, lastRotatedAccountID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("next pending rotation account", err)
	}
	return &id, nil
}

// NextPendingAccountIDTx is NextPendingAccountID's transaction-scoped
// counterpart.
func (r *KeyRotationRepo) NextPendingAccountIDTx(tx *sql.Tx, lastRotatedAccountID int64) (*int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM accounts WHERE id > ? ORDER BY id ASC LIMIT 1`, lastRotatedAccountID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("next pending rotation account", err)
	}
	return &id, nil
}

// MarkAccountRotatedTx is MarkAccountRotated's transaction-scoped
// counterpart, so one account's ciphertext rewrap and its rotation-progress
// advance commit atomically (internal/auth's rotation walk).
func (r *KeyRotationRepo) MarkAccountRotatedTx(tx *sql.Tx, accountID int64, at time.Time) error {
	res, err := tx.Exec(`UPDATE key_rotation_state SET last_rotated_account_id = ?, updated_at = ?
		WHERE id = 1 AND last_rotated_account_id < ?`, accountID, at, accountID)
	if err != nil {
		return mapSQLiteErr("mark account rotated", err)
	}
	return checkRowsAffected(res, "mark account rotated")
}

// MarkAccountRotated advances last_rotated_account_id after a single
// account's DEK has been re-wrapped under the new KEK, so a crash at this
// point resumes from accountID+1, never redoing or skipping work.
func (r *KeyRotationRepo) MarkAccountRotated(ctx context.Context, accountID int64, at time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE key_rotation_state SET last_rotated_account_id = ?, updated_at = ?
			WHERE id = 1 AND last_rotated_account_id < ?`, accountID, at, accountID)
		if err != nil {
			return mapSQLiteErr("mark account rotated", err)
		}
		return checkRowsAffected(res, "mark account rotated")
	})
}

// CompleteIfFinished sets completed_at once NextPendingAccountID would
// return nil, making completion an explicit, observable terminal state
// rather than an inferred one.
func (r *KeyRotationRepo) CompleteIfFinished(ctx context.Context, at time.Time) (bool, error) {
	var completed bool
	err := r.queue.Submit(ctx, func(tx *sql.Tx) error {
		var lastRotated int64
		if err := tx.QueryRow(`SELECT last_rotated_account_id FROM key_rotation_state WHERE id = 1`).Scan(&lastRotated); err != nil {
			return mapSQLiteErr("complete key rotation", err)
		}
		var pending int64
		err := tx.QueryRow(`SELECT id FROM accounts WHERE id > ? ORDER BY id ASC LIMIT 1`, lastRotated).Scan(&pending)
		if err != nil && err != sql.ErrNoRows {
			return mapSQLiteErr("complete key rotation", err)
		}
		if err == sql.ErrNoRows {
			if _, err := tx.Exec(`UPDATE key_rotation_state SET completed_at = ?, updated_at = ? WHERE id = 1`, at, at); err != nil {
				return mapSQLiteErr("complete key rotation", err)
			}
			completed = true
		}
		return nil
	})
	return completed, err
}
