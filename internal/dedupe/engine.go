// Package dedupe implements spec.md §4.5's dedupe engine: candidate
// reduction, a first-non-ABSTAIN-wins strategy chain, cluster
// assignment/merge, representative recomputation, and an append-only
// decision trace — grounded on original_source/tca/dedupe's strategy
// contract and original_source/tests/dedupe/test_cluster_{create,merge}.py's
// repository-level assignment semantics, ported from SQLAlchemy sessions
// to the teacher's writer-queue-serialized *sql.Tx closures.
package dedupe

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// Engine runs the dedupe pipeline for one item at a time.
type Engine struct {
	Items     *storage.ItemRepo
	Clusters  *storage.ClusterRepo
	Members   *storage.MemberRepo
	Decisions *storage.DecisionRepo

	Chain                 []Strategy
	RareTokenMaxFrequency int

	Now func() time.Time
}

func NewEngine(items *storage.ItemRepo, clusters *storage.ClusterRepo, members *storage.MemberRepo, decisions *storage.DecisionRepo, chain []Strategy, rareTokenMaxFrequency int) *Engine {
	return &Engine{
		Items: items, Clusters: clusters, Members: members, Decisions: decisions,
		Chain: chain, RareTokenMaxFrequency: rareTokenMaxFrequency, Now: func() time.Time { return time.Now().UTC() },
	}
}

// candidateVerdict is the outcome of running the strategy chain once
// against one candidate.
type candidateVerdict struct {
	candidate types.Item
	result    Result
}

// ProcessItem runs the full pipeline for item against the candidate pool
// selected from the effective dedupe horizon, assigning it to a cluster
// (new, existing, or merged) and persisting the decision trace, all in one
// writer-queue transaction (spec.md §4.5's merge-is-indivisible
// requirement). On a strategy contract violation, the transaction is not
// committed, item.dedupe_state stays whatever it already was (the caller
// is expected to leave it "pending"), and a *errs.Error with
// errs.KindContractViolation is returned so the ingest pipeline can route
// it through the ingest-error path.
func (e *Engine) ProcessItem(ctx context.Context, item types.Item, horizonMinutes int) error {
	horizon := time.Duration(horizonMinutes) * time.Minute
	candidates, err := SelectCandidates(ctx, e.Items, item, horizon, e.RareTokenMaxFrequency)
	if err != nil {
		return err
	}

	return e.Clusters.Submit(ctx, func(tx *sql.Tx) error {
		now := e.Now()
		verdicts, err := e.runChain(tx, item, candidates, now)
		if err != nil {
			return err
		}

		a := buildAssignment(tx, e.Members, verdicts)
		if len(a.existingClusterIDs) == 0 && len(a.unclusteredPeers) == 0 {
			if _, err := e.Decisions.AppendTx(tx, &types.Decision{
				ItemID: item.ID, StrategyName: "dedupe_engine", Outcome: types.OutcomeDistinct,
				ReasonCode: ReasonNoStrategyMatch, CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		if _, err := a.apply(tx, e.Clusters, e.Members, e.Decisions, e.Items, item, now); err != nil {
			return err
		}

		res, err := tx.Exec(`UPDATE items SET dedupe_state = ? WHERE id = ?`, types.DedupeStateDone, item.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.NotFound("item %d not found while finalizing dedupe", item.ID)
		}
		return nil
	})
}

// runChain evaluates e.Chain against every candidate, stopping the chain at
// the first non-ABSTAIN result per candidate (spec.md §4.5 step 2), and
// persists a Decision row for every strategy attempt.
func (e *Engine) runChain(tx *sql.Tx, item types.Item, candidates []types.Item, now time.Time) ([]candidateVerdict, error) {
	var verdicts []candidateVerdict
	for _, candidate := range candidates {
		var final Result
		matched := false
		for _, strategy := range e.Chain {
			result, err := strategy.Evaluate(item, candidate)
			if err != nil {
				return nil, errs.Fatal(err, "strategy %q evaluation failed", strategy.Name())
			}
			if err := Validate(strategy.Name(), result); err != nil {
				return nil, err
			}

			candidateID := candidate.ID
			if _, err := e.Decisions.AppendTx(tx, &types.Decision{
				ItemID: item.ID, CandidateItemID: &candidateID, StrategyName: strategy.Name(),
				Outcome: result.Status, ReasonCode: result.Reason, Score: result.Score,
				Metadata: result.Metadata, CreatedAt: now,
			}); err != nil {
				return nil, err
			}

			final = result
			matched = true
			if result.Status != types.OutcomeAbstain {
				break
			}
		}
		if matched && final.Status == types.OutcomeDuplicate {
			verdicts = append(verdicts, candidateVerdict{candidate: candidate, result: final})
		}
	}
	return verdicts, nil
}

// buildAssignment derives the cluster-assignment plan from the candidates
// the chain marked DUPLICATE, per spec.md §4.5 step 4.
func buildAssignment(tx *sql.Tx, members *storage.MemberRepo, verdicts []candidateVerdict) assignment {
	seenClusters := map[int64]bool{}
	seenPeers := map[int64]bool{}
	var a assignment
	for _, v := range verdicts {
		clusterID, err := members.GetClusterForItemTx(tx, v.candidate.ID)
		if err != nil || clusterID == nil {
			if !seenPeers[v.candidate.ID] {
				seenPeers[v.candidate.ID] = true
				a.unclusteredPeers = append(a.unclusteredPeers, v.candidate.ID)
			}
			continue
		}
		if !seenClusters[*clusterID] {
			seenClusters[*clusterID] = true
			a.existingClusterIDs = append(a.existingClusterIDs, *clusterID)
		}
	}
	sort.Slice(a.existingClusterIDs, func(i, j int) bool { return a.existingClusterIDs[i] < a.existingClusterIDs[j] })
	return a
}
