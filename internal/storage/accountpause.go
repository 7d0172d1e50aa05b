package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cuemby/tca/internal/types"
)

// AccountPauseRepo models the 1:1 pause record denormalized onto accounts
// (paused_at/pause_reason, see accounts.go). It exists as its own file for
// the risk-escalation bookkeeping internal/ingest/accountrisk.go needs: a
// rolling window of risk events that is not itself part of the Account row.
type AccountPauseRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewAccountPauseRepo(db *DB, queue *WriterQueue) *AccountPauseRepo {
	return &AccountPauseRepo{db: db, queue: queue}
}

// RecordRiskEventTx appends one risk event for accountID, used by
// internal/ingest/accountrisk.go to track a rolling 3600s window.
func (r *AccountPauseRepo) RecordRiskEventTx(tx *sql.Tx, accountID int64, at time.Time) error {
	_, err := tx.Exec(`INSERT INTO account_risk_events (account_id, occurred_at) VALUES (?, ?)`, accountID, at)
	return mapSQLiteErr("record account risk event", err)
}

// CountRiskEventsSinceTx counts risk events for accountID within the
// rolling window, the breach-count check account-risk escalation performs
// before pausing.
func (r *AccountPauseRepo) CountRiskEventsSinceTx(tx *sql.Tx, accountID int64, since time.Time) (int, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM account_risk_events WHERE account_id = ? AND occurred_at >= ?`,
		accountID, since).Scan(&n)
	return n, mapSQLiteErr("count account risk events", err)
}

func (r *AccountPauseRepo) Get(ctx context.Context, accountID int64) (*types.AccountPause, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `SELECT id, paused_at, pause_reason FROM accounts WHERE id = ?`, accountID)
	var p types.AccountPause
	var pausedAt sql.NullTime
	if err := row.Scan(&p.AccountID, &pausedAt, &p.PauseReason); err != nil {
		return nil, mapSQLiteErr("get account pause", err)
	}
	if pausedAt.Valid {
		p.PausedAt = &pausedAt.Time
	}
	return &p, nil
}

// DeleteRiskEventsOlderThan prunes account_risk_events rows outside the
// rolling window so the table stays bounded.
func (r *AccountPauseRepo) DeleteRiskEventsOlderThan(tx *sql.Tx, cutoff time.Time) (int64, error) {
	res, err := tx.Exec(`DELETE FROM account_risk_events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, mapSQLiteErr("delete old account risk events", err)
	}
	return res.RowsAffected()
}
