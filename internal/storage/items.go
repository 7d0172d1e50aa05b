package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// ItemRepo stores normalized Item rows. (channel_id, upstream_message_id) is
// unique; CreateOrGet implements the ingest pipeline's "normalize/upsert by
// (channel_id, upstream_message_id)" step (SPEC_FULL.md §4.5) as a single
// write-queue closure so the insert-then-fetch-on-conflict race never
// splits across two transactions.
type ItemRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewItemRepo(db *DB, queue *WriterQueue) *ItemRepo {
	return &ItemRepo{db: db, queue: queue}
}

func (r *ItemRepo) Get(ctx context.Context, id int64) (*types.Item, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT id, channel_id, upstream_message_id, raw_message_id, published_at, title, body,
		       canonical_url, canonical_url_hash, content_hash, dedupe_state, created_at
		FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// CreateOrGet inserts item and returns its assigned id, or returns the
// existing row's id (and created=false) if (channel_id, upstream_message_id)
// already exists.
func (r *ItemRepo) CreateOrGet(ctx context.Context, item *types.Item) (id int64, created bool, err error) {
	err = r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, insErr := tx.Exec(`
			INSERT INTO items (channel_id, upstream_message_id, raw_message_id, published_at, title, body,
			                    canonical_url, canonical_url_hash, content_hash, dedupe_state, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (channel_id, upstream_message_id) DO NOTHING`,
			item.ChannelID, item.UpstreamMessageID, item.RawMessageID, nullTime(item.PublishedAt),
			item.Title, item.Body, item.CanonicalURL, item.CanonicalURLHash, item.ContentHash,
			item.DedupeState, item.CreatedAt)
		if insErr != nil {
			return mapSQLiteErr("create item", insErr)
		}
		n, insErr := res.RowsAffected()
		if insErr != nil {
			return mapSQLiteErr("create item", insErr)
		}
		if n > 0 {
			created = true
			id, insErr = res.LastInsertId()
			return insErr
		}
		return tx.QueryRow(`SELECT id FROM items WHERE channel_id = ? AND upstream_message_id = ?`,
			item.ChannelID, item.UpstreamMessageID).Scan(&id)
	})
	return id, created, err
}

// GetTx reads an item inside an already-open write transaction, used by
// internal/dedupe's representative recompute so the read and the
// subsequent SetRepresentativeTx commit together.
func (r *ItemRepo) GetTx(tx *sql.Tx, id int64) (*types.Item, error) {
	row := tx.QueryRow(`
		SELECT id, channel_id, upstream_message_id, raw_message_id, published_at, title, body,
		       canonical_url, canonical_url_hash, content_hash, dedupe_state, created_at
		FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (r *ItemRepo) SetDedupeState(ctx context.Context, id int64, state types.DedupeState) error {
	return r.queue.Submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE items SET dedupe_state = ? WHERE id = ?`, state, id)
		if err != nil {
			return mapSQLiteErr("set item dedupe state", err)
		}
		return checkRowsAffected(res, "set item dedupe state")
	})
}

// ListPendingDedupe returns items awaiting the dedupe engine, oldest first
// (ascending id), so a restart resumes in the same order it left off.
func (r *ItemRepo) ListPendingDedupe(ctx context.Context, limit int) ([]types.Item, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, channel_id, upstream_message_id, raw_message_id, published_at, title, body,
		       canonical_url, canonical_url_hash, content_hash, dedupe_state, created_at
		FROM items WHERE dedupe_state = ? ORDER BY id ASC LIMIT ?`, types.DedupeStatePending, limit)
	if err != nil {
		return nil, mapSQLiteErr("list pending dedupe items", err)
	}
	defer rows.Close()
	return scanItemRows(rows)
}

// ListCandidates returns items published within horizon of item's
// published_at, across accounts, for the dedupe engine's blocking step
// (internal/dedupe/blocking.go).
func (r *ItemRepo) ListCandidates(ctx context.Context, publishedAt time.Time, horizon time.Duration) ([]types.Item, error) {
	from := publishedAt.Add(-horizon)
	to := publishedAt.Add(horizon)
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, channel_id, upstream_message_id, raw_message_id, published_at, title, body,
		       canonical_url, canonical_url_hash, content_hash, dedupe_state, created_at
		FROM items WHERE published_at BETWEEN ? AND ? ORDER BY id ASC`, from, to)
	if err != nil {
		return nil, mapSQLiteErr("list dedupe candidates", err)
	}
	defer rows.Close()
	return scanItemRows(rows)
}

// CountPending implements part of internal/metrics.Snapshot.
func (r *ItemRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.ReadPool.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE dedupe_state = ?`, types.DedupeStatePending).Scan(&n)
	return n, mapSQLiteErr("count pending items", err)
}

func (r *ItemRepo) DeleteOlderThan(tx *sql.Tx, cutoff any, batchSize int) (int64, error) {
	res, err := tx.Exec(`
		DELETE FROM items WHERE id IN (
			SELECT id FROM items WHERE created_at < ? ORDER BY id ASC LIMIT ?
		)`, cutoff, batchSize)
	if err != nil {
		return 0, mapSQLiteErr("delete old items", err)
	}
	return res.RowsAffected()
}

// ListIDsOlderThanTx returns up to limit item ids older than cutoff,
// ascending, so internal/ops's retention prune can accumulate the clusters
// those items belong to before deleting them (spec.md §4.6 step 2).
func (r *ItemRepo) ListIDsOlderThanTx(tx *sql.Tx, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := tx.Query(`SELECT id FROM items WHERE created_at < ? ORDER BY id ASC LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, mapSQLiteErr("list old item ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLiteErr("list old item ids", err)
		}
		ids = append(ids, id)
	}
	return ids, mapSQLiteErr("list old item ids", rows.Err())
}

// DeleteByIDsTx deletes exactly the given item ids; cascading foreign keys
// remove their membership and decision rows in the same statement.
func (r *ItemRepo) DeleteByIDsTx(tx *sql.Tx, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := inClause(`DELETE FROM items WHERE id IN (%s)`, ids)
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, mapSQLiteErr("delete items by id", err)
	}
	return res.RowsAffected()
}

func scanItem(row *sql.Row) (*types.Item, error) {
	var i types.Item
	var publishedAt sql.NullTime
	var rawMessageID sql.NullInt64
	err := row.Scan(&i.ID, &i.ChannelID, &i.UpstreamMessageID, &rawMessageID, &publishedAt, &i.Title, &i.Body,
		&i.CanonicalURL, &i.CanonicalURLHash, &i.ContentHash, &i.DedupeState, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("item not found")
	}
	if err != nil {
		return nil, mapSQLiteErr("scan item", err)
	}
	if publishedAt.Valid {
		i.PublishedAt = &publishedAt.Time
	}
	if rawMessageID.Valid {
		i.RawMessageID = &rawMessageID.Int64
	}
	return &i, nil
}

func scanItemRows(rows *sql.Rows) ([]types.Item, error) {
	var out []types.Item
	for rows.Next() {
		var i types.Item
		var publishedAt sql.NullTime
		var rawMessageID sql.NullInt64
		if err := rows.Scan(&i.ID, &i.ChannelID, &i.UpstreamMessageID, &rawMessageID, &publishedAt, &i.Title, &i.Body,
			&i.CanonicalURL, &i.CanonicalURLHash, &i.ContentHash, &i.DedupeState, &i.CreatedAt); err != nil {
			return nil, mapSQLiteErr("scan item rows", err)
		}
		if publishedAt.Valid {
			i.PublishedAt = &publishedAt.Time
		}
		if rawMessageID.Valid {
			i.RawMessageID = &rawMessageID.Int64
		}
		out = append(out, i)
	}
	return out, mapSQLiteErr("scan item rows", rows.Err())
}
