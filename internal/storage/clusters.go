package storage

import (
	"context"
	"database/sql"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// ClusterRepo stores Cluster rows. Mutating methods come in two shapes:
// context-level methods (Submit their own writer-queue closure, for
// standalone callers) and *sql.Tx-level methods (suffixed Tx, for
// internal/dedupe's engine to compose cluster-assignment, member-move, and
// representative-recompute into one atomic writer-queue closure, matching
// spec.md §4.5's requirement that a merge is indivisible).
type ClusterRepo struct {
	db    *DB
	queue *WriterQueue
}

func NewClusterRepo(db *DB, queue *WriterQueue) *ClusterRepo {
	return &ClusterRepo{db: db, queue: queue}
}

func (r *ClusterRepo) Get(ctx context.Context, id int64) (*types.Cluster, error) {
	row := r.db.ReadPool.QueryRowContext(ctx, `
		SELECT id, cluster_key, representative_item_id, created_at, updated_at
		FROM clusters WHERE id = ?`, id)
	return scanCluster(row)
}

// Submit runs fn against the write connection, giving dedupe a way to
// compose ClusterRepo/MemberRepo/DecisionRepo Tx-methods into one
// transaction without each repo needing its own queue reference.
func (r *ClusterRepo) Submit(ctx context.Context, fn func(*sql.Tx) error) error {
	return r.queue.Submit(ctx, fn)
}

// CreateTx creates a new cluster with no members and no representative yet.
func (r *ClusterRepo) CreateTx(tx *sql.Tx, clusterKey string, createdAt any) (int64, error) {
	res, err := tx.Exec(`INSERT INTO clusters (cluster_key, representative_item_id, created_at, updated_at)
		VALUES (?, NULL, ?, ?)`, clusterKey, createdAt, createdAt)
	if err != nil {
		return 0, mapSQLiteErr("create cluster", err)
	}
	return res.LastInsertId()
}

// SetRepresentativeTx updates the recomputed representative item, per
// internal/dedupe/representative.go.
func (r *ClusterRepo) SetRepresentativeTx(tx *sql.Tx, clusterID, itemID int64, updatedAt any) error {
	res, err := tx.Exec(`UPDATE clusters SET representative_item_id = ?, updated_at = ? WHERE id = ?`,
		itemID, updatedAt, clusterID)
	if err != nil {
		return mapSQLiteErr("set cluster representative", err)
	}
	return checkRowsAffected(res, "set cluster representative")
}

// DeleteEmptyTx removes a cluster with zero members, the prune step that
// keeps an empty cluster from persisting past a retention run.
func (r *ClusterRepo) DeleteEmptyTx(tx *sql.Tx, clusterID int64) error {
	res, err := tx.Exec(`DELETE FROM clusters WHERE id = ? AND NOT EXISTS (SELECT 1 FROM members WHERE cluster_id = ?)`,
		clusterID, clusterID)
	if err != nil {
		return mapSQLiteErr("delete empty cluster", err)
	}
	_, err = res.RowsAffected()
	return err
}

// CountClusters implements part of internal/metrics.Snapshot.
func (r *ClusterRepo) CountClusters(ctx context.Context) (int, error) {
	var n int
	err := r.db.ReadPool.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters`).Scan(&n)
	return n, mapSQLiteErr("count clusters", err)
}

func scanCluster(row *sql.Row) (*types.Cluster, error) {
	var c types.Cluster
	var repID sql.NullInt64
	err := row.Scan(&c.ID, &c.ClusterKey, &repID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("cluster not found")
	}
	if err != nil {
		return nil, mapSQLiteErr("scan cluster", err)
	}
	if repID.Valid {
		c.RepresentativeItemID = &repID.Int64
	}
	return &c, nil
}
