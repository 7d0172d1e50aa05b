package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/tca/internal/dedupe"
	"github.com/cuemby/tca/internal/metrics"
	"github.com/cuemby/tca/internal/settings"
	"github.com/cuemby/tca/internal/storage"
)

// pruneBatchSize bounds how many rows a single DELETE touches per
// iteration, per spec.md §4.6's "batches of ≤500 ids".
const pruneBatchSize = 500

// PruneResult reports what one retention-prune run did, for logging and
// the caller's own bookkeeping; metrics are recorded internally as the run
// progresses rather than derived from this struct.
type PruneResult struct {
	RawMessagesDeleted  int64
	ItemsDeleted        int64
	ClustersRecomputed  int
	ClustersDeleted     int64
	MembersOrphaned     int64
	DecisionsOrphaned   int64
	IngestErrorsDeleted int64
}

// Pruner runs the six-step retention prune described in spec.md §4.6. All
// six steps execute inside the one write transaction WriterQueue.Submit
// hands the closure, per that section's "the whole prune runs inside one
// write transaction" requirement.
type Pruner struct {
	RawMessages  *storage.RawMessageRepo
	Items        *storage.ItemRepo
	Clusters     *storage.ClusterRepo
	Members      *storage.MemberRepo
	Decisions    *storage.DecisionRepo
	IngestErrors *storage.IngestErrorRepo
	Queue        *storage.WriterQueue
	Resolver     *settings.Resolver
	Logger       zerolog.Logger
	Now          func() time.Time
}

func (p *Pruner) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Run executes one prune cycle.
func (p *Pruner) Run(ctx context.Context) (PruneResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PruneDuration)

	rawDays, err := p.Resolver.RetentionRawMessagesDays(ctx)
	if err != nil {
		return PruneResult{}, err
	}
	itemDays, err := p.Resolver.RetentionItemsDays(ctx)
	if err != nil {
		return PruneResult{}, err
	}
	errorDays, err := p.Resolver.RetentionIngestErrorsDays(ctx)
	if err != nil {
		return PruneResult{}, err
	}

	now := p.now()
	rawCutoff := now.AddDate(0, 0, -rawDays)
	errorCutoff := now.AddDate(0, 0, -errorDays)

	var result PruneResult
	err = p.Queue.Submit(ctx, func(tx *sql.Tx) error {
		// Step 1: raw messages.
		for {
			n, err := p.RawMessages.DeleteOlderThan(tx, rawCutoff, pruneBatchSize)
			if err != nil {
				return err
			}
			if n > 0 {
				metrics.PruneBatchesTotal.WithLabelValues("raw_messages").Inc()
				result.RawMessagesDeleted += n
			}
			if n < pruneBatchSize {
				break
			}
		}

		// Step 2: items, retaining forever when itemDays == 0.
		affectedClusters := map[int64]bool{}
		if itemDays > 0 {
			itemCutoff := now.AddDate(0, 0, -itemDays)
			for {
				ids, err := p.Items.ListIDsOlderThanTx(tx, itemCutoff, pruneBatchSize)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					break
				}
				clusterIDs, err := p.Members.ClusterIDsForItemsTx(tx, ids)
				if err != nil {
					return err
				}
				for _, c := range clusterIDs {
					affectedClusters[c] = true
				}
				n, err := p.Items.DeleteByIDsTx(tx, ids)
				if err != nil {
					return err
				}
				metrics.PruneBatchesTotal.WithLabelValues("items").Inc()
				result.ItemsDeleted += n
				if len(ids) < pruneBatchSize {
					break
				}
			}
		}

		// Step 3: recompute representatives for clusters that lost a member.
		for clusterID := range affectedClusters {
			if err := dedupe.RecomputeRepresentativeTx(tx, p.Clusters, p.Members, p.Items, clusterID, now); err != nil {
				return err
			}
			result.ClustersRecomputed++
		}

		// Step 4: delete clusters from the affected set that are now empty.
		for clusterID := range affectedClusters {
			n, err := p.Members.CountByClusterTx(tx, clusterID)
			if err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := p.Clusters.DeleteEmptyTx(tx, clusterID); err != nil {
				return err
			}
			result.ClustersDeleted++
		}

		// Step 5: defensive orphan cleanup.
		membersOrphaned, err := p.Members.DeleteOrphanedTx(tx)
		if err != nil {
			return err
		}
		result.MembersOrphaned = membersOrphaned

		decisionsOrphaned, err := p.Decisions.DeleteOrphanedTx(tx)
		if err != nil {
			return err
		}
		result.DecisionsOrphaned = decisionsOrphaned

		// Step 6: ingest errors.
		for {
			n, err := p.IngestErrors.DeleteOlderThan(tx, errorCutoff, pruneBatchSize)
			if err != nil {
				return err
			}
			if n > 0 {
				metrics.PruneBatchesTotal.WithLabelValues("ingest_errors").Inc()
				result.IngestErrorsDeleted += n
			}
			if n < pruneBatchSize {
				break
			}
		}

		return nil
	})
	if err != nil {
		return PruneResult{}, err
	}

	p.Logger.Info().
		Int64("raw_messages_deleted", result.RawMessagesDeleted).
		Int64("items_deleted", result.ItemsDeleted).
		Int("clusters_recomputed", result.ClustersRecomputed).
		Int64("clusters_deleted", result.ClustersDeleted).
		Int64("members_orphaned", result.MembersOrphaned).
		Int64("decisions_orphaned", result.DecisionsOrphaned).
		Int64("ingest_errors_deleted", result.IngestErrorsDeleted).
		Msg("retention prune completed")

	return result, nil
}
