package dedupe

import (
	"math"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

// Result is one strategy's verdict on a (item, candidate) pair, the Go
// shape of spec.md §4.5 step 2's DUPLICATE/DISTINCT/ABSTAIN contract —
// grounded on original_source/tests/dedupe/test_strategy_contract.py's
// coerce_strategy_result, which rejects non-mapping returns, unknown
// statuses, non-finite or boolean scores, and non-string metadata keys.
// In Go, Score's type already rules out the boolean case; Validate still
// rejects NaN/±Inf and a DUPLICATE with no score.
type Result struct {
	Status   types.DecisionOutcome
	Reason   string
	Score    *float64
	Metadata map[string]any
}

// Strategy evaluates item against candidate and returns a Result. Strategy
// contract enforcement is strict and fail-fast (spec.md §4.5): an invalid
// Result halts the chain for that item via Validate below.
type Strategy interface {
	Name() string
	Evaluate(item, candidate types.Item) (Result, error)
}

// Validate enforces the strategy result contract: returns
// errs.ContractViolation on any violation, matching
// tca.dedupe.StrategyContractError's role in the original.
func Validate(strategyName string, r Result) error {
	switch r.Status {
	case types.OutcomeDuplicate, types.OutcomeDistinct, types.OutcomeAbstain:
	default:
		return errs.ContractViolation("strategy %q: unknown strategy status %q", strategyName, r.Status)
	}
	if r.Reason == "" {
		return errs.ContractViolation("strategy %q: result missing reason code", strategyName)
	}
	if r.Status == types.OutcomeDuplicate && r.Score == nil {
		return errs.ContractViolation("strategy %q: DUPLICATE result missing score", strategyName)
	}
	if r.Score != nil {
		if math.IsNaN(*r.Score) || math.IsInf(*r.Score, 0) {
			return errs.ContractViolation("strategy %q: score must be finite", strategyName)
		}
	}
	for k := range r.Metadata {
		if k == "" {
			return errs.ContractViolation("strategy %q: metadata keys must be non-empty strings", strategyName)
		}
	}
	return nil
}
