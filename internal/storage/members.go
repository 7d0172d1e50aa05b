package storage

import (
	"context"
	"database/sql"

	"github.com/cuemby/tca/internal/types"
)

// MemberRepo stores the (cluster_id, item_id) join rows. An item belongs to
// at most one cluster, enforced by a unique index on item_id.
type MemberRepo struct {
	db *DB
}

func NewMemberRepo(db *DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// AddTx assigns item_id to cluster_id. Called from inside a ClusterRepo.Submit
// closure so assignment and representative recompute commit together.
func (r *MemberRepo) AddTx(tx *sql.Tx, clusterID, itemID int64, createdAt any) error {
	_, err := tx.Exec(`INSERT INTO members (cluster_id, item_id, created_at) VALUES (?, ?, ?)`,
		clusterID, itemID, createdAt)
	return mapSQLiteErr("add member", err)
}

// MoveAllTx reassigns every member of fromCluster to toCluster, the
// mechanics of a merge (spec.md §4.5's "smallest-id-wins" rule picks which
// of the two is toCluster; the caller decides that before calling this).
func (r *MemberRepo) MoveAllTx(tx *sql.Tx, fromCluster, toCluster int64) error {
	_, err := tx.Exec(`UPDATE members SET cluster_id = ? WHERE cluster_id = ?`, toCluster, fromCluster)
	return mapSQLiteErr("move cluster members", err)
}

// GetClusterForItemTx returns the cluster an item currently belongs to, if any.
func (r *MemberRepo) GetClusterForItemTx(tx *sql.Tx, itemID int64) (*int64, error) {
	var clusterID int64
	err := tx.QueryRow(`SELECT cluster_id FROM members WHERE item_id = ?`, itemID).Scan(&clusterID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("get cluster for item", err)
	}
	return &clusterID, nil
}

// ListByClusterTx reads a cluster's members inside an already-open write
// transaction, for the representative recompute that must commit alongside
// the membership change that triggered it.
func (r *MemberRepo) ListByClusterTx(tx *sql.Tx, clusterID int64) ([]types.Member, error) {
	rows, err := tx.Query(`
		SELECT cluster_id, item_id, created_at FROM members WHERE cluster_id = ? ORDER BY item_id ASC`, clusterID)
	if err != nil {
		return nil, mapSQLiteErr("list cluster members", err)
	}
	defer rows.Close()

	var out []types.Member
	for rows.Next() {
		var m types.Member
		if err := rows.Scan(&m.ClusterID, &m.ItemID, &m.CreatedAt); err != nil {
			return nil, mapSQLiteErr("list cluster members", err)
		}
		out = append(out, m)
	}
	return out, mapSQLiteErr("list cluster members", rows.Err())
}

// GetClusterForItem is the read-pool counterpart of GetClusterForItemTx,
// for callers outside a writer-queue closure (e.g. read-only lookups).
func (r *MemberRepo) GetClusterForItem(ctx context.Context, itemID int64) (*int64, error) {
	var clusterID int64
	err := r.db.ReadPool.QueryRowContext(ctx, `SELECT cluster_id FROM members WHERE item_id = ?`, itemID).Scan(&clusterID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapSQLiteErr("get cluster for item", err)
	}
	return &clusterID, nil
}

func (r *MemberRepo) ListByCluster(ctx context.Context, clusterID int64) ([]types.Member, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT cluster_id, item_id, created_at FROM members WHERE cluster_id = ? ORDER BY item_id ASC`, clusterID)
	if err != nil {
		return nil, mapSQLiteErr("list cluster members", err)
	}
	defer rows.Close()

	var out []types.Member
	for rows.Next() {
		var m types.Member
		if err := rows.Scan(&m.ClusterID, &m.ItemID, &m.CreatedAt); err != nil {
			return nil, mapSQLiteErr("list cluster members", err)
		}
		out = append(out, m)
	}
	return out, mapSQLiteErr("list cluster members", rows.Err())
}

// ClusterIDsForItemsTx returns the distinct cluster ids the given item ids
// currently belong to, read before internal/ops's retention prune deletes
// those items (spec.md §4.6 step 2's "accumulate affected cluster ids by
// joining through membership before deleting").
func (r *MemberRepo) ClusterIDsForItemsTx(tx *sql.Tx, itemIDs []int64) ([]int64, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	query, args := inClause(`SELECT DISTINCT cluster_id FROM members WHERE item_id IN (%s)`, itemIDs)
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, mapSQLiteErr("cluster ids for items", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLiteErr("cluster ids for items", err)
		}
		out = append(out, id)
	}
	return out, mapSQLiteErr("cluster ids for items", rows.Err())
}

// CountByClusterTx returns how many items belong to clusterID, used to
// decide whether a just-emptied cluster must be deleted.
func (r *MemberRepo) CountByClusterTx(tx *sql.Tx, clusterID int64) (int, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM members WHERE cluster_id = ?`, clusterID).Scan(&n)
	return n, mapSQLiteErr("count cluster members", err)
}

// DeleteOrphanedTx removes member rows whose item_id or cluster_id no
// longer resolves. Foreign-key cascades (db.go enables _foreign_keys=on)
// already keep this from happening in the ordinary case; this is the
// retention prune's defensive cleanup pass (spec.md §4.6 step 5) for rows
// that predate a cascade or survive a partial failure.
func (r *MemberRepo) DeleteOrphanedTx(tx *sql.Tx) (int64, error) {
	res, err := tx.Exec(`
		DELETE FROM members
		WHERE NOT EXISTS (SELECT 1 FROM items WHERE items.id = members.item_id)
		   OR NOT EXISTS (SELECT 1 FROM clusters WHERE clusters.id = members.cluster_id)`)
	if err != nil {
		return 0, mapSQLiteErr("delete orphaned members", err)
	}
	return res.RowsAffected()
}
