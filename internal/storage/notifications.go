package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// NotificationRepo stores operator-visible Notification rows. The writer
// queue always records a notification here first; internal/events's NATS
// mirror is a best-effort fan-out afterward, never the system of record
// (SPEC_FULL.md §6).
type NotificationRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewNotificationRepo(db *DB, queue *WriterQueue) *NotificationRepo {
	return &NotificationRepo{db: db, queue: queue}
}

func (r *NotificationRepo) Create(ctx context.Context, n *types.Notification) (int64, error) {
	var id int64
	err := r.queue.Submit(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = r.CreateTx(tx, n)
		return err
	})
	return id, err
}

// CreateTx is the tx-scoped equivalent of Create, for callers that already
// hold the writer queue's single transaction (e.g.
// internal/ingest.RecordAccountRiskBreach): calling Create there would
// submit a nested job to the writer queue and deadlock, since the only
// consumer goroutine is already blocked running the outer closure.
func (r *NotificationRepo) CreateTx(tx *sql.Tx, n *types.Notification) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO notifications (type, severity, message, payload_json, is_acknowledged, acknowledged_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.Type, n.Severity, n.Message, []byte(n.Payload), n.IsAcknowledged, nullTime(n.AcknowledgedAt), n.CreatedAt)
	if err != nil {
		return 0, mapSQLiteErr("create notification", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapSQLiteErr("create notification", err)
	}
	return id, nil
}

// Acknowledge is idempotent: acknowledging an already-acknowledged
// notification is a no-op success, not an error.
func (r *NotificationRepo) Acknowledge(ctx context.Context, id int64, at time.Time) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE notifications SET is_acknowledged = 1, acknowledged_at = ?
			WHERE id = ? AND is_acknowledged = 0`, at, id)
		if err != nil {
			return mapSQLiteErr("acknowledge notification", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM notifications WHERE id = ?)`, id).Scan(&exists); err != nil {
				return mapSQLiteErr("acknowledge notification", err)
			}
			if !exists {
				return errs.NotFound("notification %d not found", id)
			}
		}
		return nil
	})
}

func (r *NotificationRepo) ListUnacknowledged(ctx context.Context) ([]types.Notification, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, type, severity, message, payload_json, is_acknowledged, acknowledged_at, created_at
		FROM notifications WHERE is_acknowledged = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, mapSQLiteErr("list unacknowledged notifications", err)
	}
	defer rows.Close()
	return scanNotificationRows(rows)
}

// CountUnacknowledged implements part of internal/metrics.Snapshot.
func (r *NotificationRepo) CountUnacknowledged(ctx context.Context) (int, error) {
	var n int
	err := r.db.ReadPool.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE is_acknowledged = 0`).Scan(&n)
	return n, mapSQLiteErr("count unacknowledged notifications", err)
}

func scanNotificationRows(rows *sql.Rows) ([]types.Notification, error) {
	var out []types.Notification
	for rows.Next() {
		var n types.Notification
		var payload []byte
		var ackAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.Type, &n.Severity, &n.Message, &payload, &n.IsAcknowledged, &ackAt, &n.CreatedAt); err != nil {
			return nil, mapSQLiteErr("scan notification rows", err)
		}
		n.Payload = payload
		if ackAt.Valid {
			n.AcknowledgedAt = &ackAt.Time
		}
		out = append(out, n)
	}
	return out, mapSQLiteErr("scan notification rows", rows.Err())
}
