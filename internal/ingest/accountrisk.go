package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// Account-risk escalation constants, grounded on
// original_source/tca/ingest/account_risk.py.
const (
	AccountRiskWindow         = time.Hour
	AccountRiskThreshold      = 3
	AccountRiskPauseReason    = "account-risk"
	AccountRiskNotificationTy = "ingest.account_risk"
)

// RecordAccountRiskBreach appends one risk event for accountID and, once a
// rolling AccountRiskWindow holds AccountRiskThreshold or more events,
// pauses the account and raises exactly one high-severity notification.
// Already-paused accounts are left untouched (an explicit resume is
// required, per spec.md §4.7). Everything commits in one writer-queue
// transaction so the breach count and the resulting pause/notification
// never observe a partial write.
func RecordAccountRiskBreach(
	ctx context.Context,
	pauses *storage.AccountPauseRepo,
	notifications *storage.NotificationRepo,
	queue *storage.WriterQueue,
	accountID int64,
	now time.Time,
) error {
	return queue.Submit(ctx, func(tx *sql.Tx) error {
		pause, err := pauses.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if pause.PausedAt != nil {
			return nil
		}

		if err := pauses.RecordRiskEventTx(tx, accountID, now); err != nil {
			return err
		}
		since := now.Add(-AccountRiskWindow)
		n, err := pauses.CountRiskEventsSinceTx(tx, accountID, since)
		if err != nil {
			return err
		}
		if n < AccountRiskThreshold {
			return nil
		}

		if err := pauseAccountTx(tx, accountID, AccountRiskPauseReason, now); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]any{
			"account_id":     accountID,
			"breach_count":   n,
			"breach_reason":  "flood-wait",
			"window_seconds": int(AccountRiskWindow.Seconds()),
			"paused_at":      now,
		})
		if err != nil {
			return errs.Fatal(err, "encode account risk notification payload")
		}
		_, err = notifications.CreateTx(tx, &types.Notification{
			Type: AccountRiskNotificationTy, Severity: types.SeverityHigh,
			Message:   "account paused after repeated risk events; explicit resume required to continue polling",
			Payload:   payload,
			CreatedAt: now,
		})
		return err
	})
}

// pauseAccountTx is the tx-scoped equivalent of AccountRepo.Pause, needed
// here because the pause must commit atomically with the risk-event
// insert and notification row above.
func pauseAccountTx(tx *sql.Tx, accountID int64, reason string, at time.Time) error {
	res, err := tx.Exec(`UPDATE accounts SET paused_at = ?, pause_reason = ?, updated_at = ? WHERE id = ?`,
		at, reason, at, accountID)
	if err != nil {
		return errs.Fatal(err, "pause account %d", accountID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Fatal(err, "pause account %d", accountID)
	}
	if n == 0 {
		return errs.NotFound("account %d not found", accountID)
	}
	return nil
}
