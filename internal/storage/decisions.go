package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cuemby/tca/internal/types"
)

// DecisionRepo is the append-only trace of every dedupe strategy attempt.
// Rows are never updated or deleted by ordinary operation; AppendTx is
// called from inside the same writer-queue closure as the cluster
// assignment it documents, so a decision always survives exactly as long as
// the mutation it explains.
type DecisionRepo struct {
	db *DB
}

func NewDecisionRepo(db *DB) *DecisionRepo {
	return &DecisionRepo{db: db}
}

func (r *DecisionRepo) AppendTx(tx *sql.Tx, d *types.Decision) (int64, error) {
	var metadataJSON []byte
	if d.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(d.Metadata)
		if err != nil {
			return 0, err
		}
	}
	res, err := tx.Exec(`
		INSERT INTO decisions (item_id, cluster_id, candidate_item_id, strategy_name, outcome, reason_code, score, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ItemID, nullInt64(d.ClusterID), nullInt64(d.CandidateItemID), d.StrategyName, d.Outcome, d.ReasonCode, d.Score, metadataJSON, d.CreatedAt)
	if err != nil {
		return 0, mapSQLiteErr("append decision", err)
	}
	return res.LastInsertId()
}

// DeleteOrphanedTx removes decision rows whose item_id no longer resolves
// (cluster_id and candidate_item_id are ON DELETE SET NULL and never go
// orphaned themselves). The retention prune's defensive cleanup pass,
// spec.md §4.6 step 5, alongside MemberRepo.DeleteOrphanedTx.
func (r *DecisionRepo) DeleteOrphanedTx(tx *sql.Tx) (int64, error) {
	res, err := tx.Exec(`
		DELETE FROM decisions
		WHERE NOT EXISTS (SELECT 1 FROM items WHERE items.id = decisions.item_id)`)
	if err != nil {
		return 0, mapSQLiteErr("delete orphaned decisions", err)
	}
	return res.RowsAffected()
}

func (r *DecisionRepo) ListByItem(ctx context.Context, itemID int64) ([]types.Decision, error) {
	rows, err := r.db.ReadPool.QueryContext(ctx, `
		SELECT id, item_id, cluster_id, candidate_item_id, strategy_name, outcome, reason_code, score, metadata_json, created_at
		FROM decisions WHERE item_id = ? ORDER BY id ASC`, itemID)
	if err != nil {
		return nil, mapSQLiteErr("list decisions by item", err)
	}
	defer rows.Close()

	var out []types.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, mapSQLiteErr("list decisions by item", rows.Err())
}

func scanDecision(rows *sql.Rows) (*types.Decision, error) {
	var d types.Decision
	var clusterID, candidateItemID sql.NullInt64
	var score sql.NullFloat64
	var metadataJSON []byte
	if err := rows.Scan(&d.ID, &d.ItemID, &clusterID, &candidateItemID, &d.StrategyName, &d.Outcome, &d.ReasonCode, &score, &metadataJSON, &d.CreatedAt); err != nil {
		return nil, mapSQLiteErr("scan decision", err)
	}
	if clusterID.Valid {
		d.ClusterID = &clusterID.Int64
	}
	if candidateItemID.Valid {
		d.CandidateItemID = &candidateItemID.Int64
	}
	if score.Valid {
		d.Score = &score.Float64
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &d.Metadata); err != nil {
			return nil, err
		}
	}
	return &d, nil
}
