package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// AccountRepo is the read/write surface for Account rows. Reads go through
// the read pool; writes go through the WriterQueue so every mutation is
// serialized against the rest of the system, per the teacher's Store
// interface shape (_examples/cuemby-warren/pkg/storage/store.go).
type AccountRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewAccountRepo(db *DB, queue *WriterQueue) *AccountRepo {
	return &AccountRepo{db: db, queue: queue}
}

func (r *AccountRepo) Get(ctx context.Context, id int64) (*types.Account, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT id, api_id, api_hash_ct, session_ct, key_version, paused_at, pause_reason, created_at, updated_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetTx is Get's transaction-scoped counterpart, used by the key-rotation
// walk so the read-modify-write of one account's ciphertext is part of the
// same transaction as its rotation-progress update.
func (r *AccountRepo) GetTx(tx *sql.Tx, id int64) (*types.Account, error) {
	row := tx.QueryRow(`
		SELECT id, api_id, api_hash_ct, session_ct, key_version, paused_at, pause_reason, created_at, updated_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *AccountRepo) List(ctx context.Context) ([]types.Account, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, api_id, api_hash_ct, session_ct, key_version, paused_at, pause_reason, created_at, updated_at
		FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, mapSQLiteErr("list accounts", err)
	}
	defer rows.Close()

	var out []types.Account
	for rows.Next() {
		a, err := scanAccountRows(rows)
		if err != nil {
			return nil, mapSQLiteErr("list accounts", err)
		}
		out = append(out, *a)
	}
	return out, mapSQLiteErr("list accounts", rows.Err())
}

// ListPaused returns accounts currently paused, in id order. The scheduler
// does not call it: ChannelRepo.ListSchedulable already leaves out the
// channels of paused accounts in its own query.
func (r *AccountRepo) ListPaused(ctx context.Context) ([]types.Account, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, api_id, api_hash_ct, session_ct, key_version, paused_at, pause_reason, created_at, updated_at
		FROM accounts WHERE paused_at IS NOT NULL ORDER BY id ASC`)
	if err != nil {
		return nil, mapSQLiteErr("list paused accounts", err)
	}
	defer rows.Close()

	var out []types.Account
	for rows.Next() {
		a, err := scanAccountRows(rows)
		if err != nil {
			return nil, mapSQLiteErr("list paused accounts", err)
		}
		out = append(out, *a)
	}
	return out, mapSQLiteErr("list paused accounts", rows.Err())
}

func (r *AccountRepo) Create(ctx context.Context, a *types.Account) (int64, error) {
	var id int64
	err := r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO accounts (api_id, api_hash_ct, session_ct, key_version, paused_at, pause_reason, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.APIID, a.APIHashCT, a.SessionCT, a.KeyVersion, nullTime(a.PausedAt), a.PauseReason, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return mapSQLiteErr("create account", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// Pause sets paused_at/pause_reason on an account in its own writer-queue
// transaction. Account-risk escalation (internal/ingest/accountrisk.go) does
// not call it; it runs the same UPDATE inside its own transaction.
func (r *AccountRepo) Pause(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE accounts SET paused_at = ?, pause_reason = ?, updated_at = ? WHERE id = ?`,
			at, reason, at, id)
		if err != nil {
			return mapSQLiteErr("pause account", err)
		}
		return checkRowsAffected(res, "pause account")
	})
}

// Resume clears an account's pause state. Explicit operator action only.
func (r *AccountRepo) Resume(ctx context.Context, id int64, at time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE accounts SET paused_at = NULL, pause_reason = '', updated_at = ? WHERE id = ?`,
			at, id)
		if err != nil {
			return mapSQLiteErr("resume account", err)
		}
		return checkRowsAffected(res, "resume account")
	})
}

// RewrapCiphertextTx persists the key-rotation walk's per-account result:
// both ciphertext columns re-wrapped under the new KEK version, inside the
// same write transaction the rotation step's KeyRotationRepo.MarkAccountRotated
// call uses, so an account's ciphertext and its rotation progress advance
// atomically.
func (r *AccountRepo) RewrapCiphertextTx(tx *sql.Tx, id int64, apiHashCT, sessionCT []byte, keyVersion int, at time.Time) error {
	res, err := tx.Exec(`UPDATE accounts SET api_hash_ct = ?, session_ct = ?, key_version = ?, updated_at = ? WHERE id = ?`,
		apiHashCT, sessionCT, keyVersion, at, id)
	if err != nil {
		return mapSQLiteErr("rewrap account ciphertext", err)
	}
	return checkRowsAffected(res, "rewrap account ciphertext")
}

func (r *AccountRepo) UpdateSession(ctx context.Context, id int64, sessionCT []byte, keyVersion int, at time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE accounts SET session_ct = ?, key_version = ?, updated_at = ? WHERE id = ?`,
			sessionCT, keyVersion, at, id)
		if err != nil {
			return mapSQLiteErr("update account session", err)
		}
		return checkRowsAffected(res, "update account session")
	})
}

// CountPaused implements part of internal/metrics.Snapshot.
func (r *AccountRepo) CountPaused(ctx context.Context) (int, error) {
	var n int
	err := r.db.ReadPool.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE paused_at IS NOT NULL`).Scan(&n)
	return n, mapSQLiteErr("count paused accounts", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (*types.Account, error) {
	return scanAccountScanner(row)
}

func scanAccountRows(rows *sql.Rows) (*types.Account, error) {
	return scanAccountScanner(rows)
}

func scanAccountScanner(s rowScanner) (*types.Account, error) {
	var a types.Account
	var pausedAt sql.NullTime
	err := s.Scan(&a.ID, &a.APIID, &a.APIHashCT, &a.SessionCT, &a.KeyVersion, &pausedAt, &a.PauseReason, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("account not found")
	}
	if err != nil {
		return nil, mapSQLiteErr("scan account", err)
	}
	if pausedAt.Valid {
		a.PausedAt = &pausedAt.Time
	}
	return &a, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func checkRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapSQLiteErr(op, err)
	}
	if n == 0 {
		return errs.NotFound("%s: no matching row", op)
	}
	return nil
}
