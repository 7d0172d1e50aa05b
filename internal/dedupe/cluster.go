package dedupe

import (
	"database/sql"
	"sort"
	"strconv"
	"time"

	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// assignment describes where an item (plus any not-yet-clustered
// duplicates it matched) should land, decided from the per-candidate
// outcomes gathered in engine.go, per spec.md §4.5 step 4.
type assignment struct {
	existingClusterIDs []int64 // distinct clusters among matched candidates
	unclusteredPeers   []int64 // matched candidate item ids with no cluster yet
}

// apply performs the cluster mutation described by a, moving any merged
// members and recomputing the destination cluster's representative, all
// inside the single writer-queue transaction tx belongs to. Returns the
// destination cluster id.
func (a assignment) apply(tx *sql.Tx, clusters *storage.ClusterRepo, members *storage.MemberRepo, decisions *storage.DecisionRepo, items *storage.ItemRepo, item types.Item, now time.Time) (int64, error) {
	var target int64
	var err error

	switch len(a.existingClusterIDs) {
	case 0:
		target, err = clusters.CreateTx(tx, clusterKey(item.ID), now)
		if err != nil {
			return 0, err
		}
	case 1:
		target = a.existingClusterIDs[0]
	default:
		sorted := append([]int64(nil), a.existingClusterIDs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		target = sorted[0]
		sources := sorted[1:]

		for _, source := range sources {
			if err := members.MoveAllTx(tx, source, target); err != nil {
				return 0, err
			}
			if err := clusters.DeleteEmptyTx(tx, source); err != nil {
				return 0, err
			}
		}

		if _, err := decisions.AppendTx(tx, &types.Decision{
			ItemID:       item.ID,
			ClusterID:    &target,
			StrategyName: ReasonClusterMerge,
			Outcome:      types.OutcomeDuplicate,
			ReasonCode:   ReasonClusterMerge,
			Metadata:     map[string]any{"source_cluster_ids": sources, "target_cluster_id": target},
			CreatedAt:    now,
		}); err != nil {
			return 0, err
		}
	}

	if err := addMemberIdempotent(tx, members, target, item.ID, now); err != nil {
		return 0, err
	}
	for _, peerID := range a.unclusteredPeers {
		if err := addMemberIdempotent(tx, members, target, peerID, now); err != nil {
			return 0, err
		}
	}

	return target, RecomputeRepresentativeTx(tx, clusters, members, items, target, now)
}

func addMemberIdempotent(tx *sql.Tx, members *storage.MemberRepo, clusterID, itemID int64, now time.Time) error {
	existing, err := members.GetClusterForItemTx(tx, itemID)
	if err != nil {
		return err
	}
	if existing != nil && *existing == clusterID {
		return nil
	}
	return members.AddTx(tx, clusterID, itemID, now)
}

// RecomputeRepresentativeTx recomputes and persists clusterID's
// representative from its current membership, inside tx. Exported so
// internal/ops's retention prune can reuse the exact recompute rule
// (PickRepresentative) after deleting items out from under a cluster,
// rather than reimplementing the tie-break logic.
func RecomputeRepresentativeTx(tx *sql.Tx, clusters *storage.ClusterRepo, members *storage.MemberRepo, items *storage.ItemRepo, clusterID int64, now time.Time) error {
	rows, err := members.ListByClusterTx(tx, clusterID)
	if err != nil {
		return err
	}
	memberItems := make([]types.Item, 0, len(rows))
	for _, m := range rows {
		it, err := items.GetTx(tx, m.ItemID)
		if err != nil {
			return err
		}
		memberItems = append(memberItems, *it)
	}
	if len(memberItems) == 0 {
		return nil
	}
	rep := PickRepresentative(memberItems)
	return clusters.SetRepresentativeTx(tx, clusterID, rep.ID, now)
}

func clusterKey(seedItemID int64) string {
	return "item-" + strconv.FormatInt(seedItemID, 10)
}
