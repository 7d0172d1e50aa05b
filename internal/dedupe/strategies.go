package dedupe

import (
	"github.com/cuemby/tca/internal/types"
)

// Reason codes are grounded on the original's exported constants
// (original_source/tests/dedupe/test_strategy_*.py import
// EXACT_URL_MATCH_REASON, CONTENT_HASH_MATCH_REASON,
// TITLE_SIMILARITY_SHORT_TITLE_REASON, etc., from tca.dedupe).
const (
	ReasonExactURLMatch     = "exact_url_match"
	ReasonExactURLMismatch  = "exact_url_mismatch"
	ReasonExactURLMissing   = "exact_url_missing"
	ReasonContentHashMatch  = "content_hash_match"
	ReasonContentHashMiss   = "content_hash_mismatch"
	ReasonTitleSimMatch     = "title_similarity_match"
	ReasonTitleSimMismatch  = "title_similarity_mismatch"
	ReasonTitleSimShort     = "title_similarity_short_title"
	ReasonNoStrategyMatch   = "no_strategy_match"
	ReasonClusterMerge      = "cluster_merge"
	minTitleTokensToCompare = 3
)

func ptr(f float64) *float64 { return &f }

// ExactURLStrategy compares canonical_url_hash: equal → DUPLICATE,
// present-but-different → DISTINCT, either side missing → ABSTAIN.
type ExactURLStrategy struct{}

func (ExactURLStrategy) Name() string { return "exact_url" }

func (ExactURLStrategy) Evaluate(item, candidate types.Item) (Result, error) {
	if item.CanonicalURLHash == "" || candidate.CanonicalURLHash == "" {
		return Result{Status: types.OutcomeAbstain, Reason: ReasonExactURLMissing}, nil
	}
	if item.CanonicalURLHash == candidate.CanonicalURLHash {
		return Result{Status: types.OutcomeDuplicate, Reason: ReasonExactURLMatch, Score: ptr(1.0)}, nil
	}
	return Result{Status: types.OutcomeDistinct, Reason: ReasonExactURLMismatch}, nil
}

// ContentHashStrategy recomputes the normalized title+body hash for both
// sides (rather than trusting the stored content_hash column, which may
// predate a normalization rule change) and compares.
type ContentHashStrategy struct{}

func (ContentHashStrategy) Name() string { return "content_hash" }

func (ContentHashStrategy) Evaluate(item, candidate types.Item) (Result, error) {
	left := HashContent(item.Title, item.Body)
	right := HashContent(candidate.Title, candidate.Body)
	if left == "" || right == "" {
		return Result{Status: types.OutcomeAbstain, Reason: ReasonContentHashMiss}, nil
	}
	meta := map[string]any{"left_content_hash": left, "right_content_hash": right}
	if left == right {
		return Result{Status: types.OutcomeDuplicate, Reason: ReasonContentHashMatch, Score: ptr(1.0), Metadata: meta}, nil
	}
	return Result{Status: types.OutcomeDistinct, Reason: ReasonContentHashMiss, Metadata: meta}, nil
}

// TitleSimilarityStrategy compares token-set (Jaccard) similarity of the
// two titles against a threshold.
type TitleSimilarityStrategy struct {
	Threshold float64
}

func (TitleSimilarityStrategy) Name() string { return "title_similarity" }

func (s TitleSimilarityStrategy) Evaluate(item, candidate types.Item) (Result, error) {
	left := TitleTokens(item.Title)
	right := TitleTokens(candidate.Title)
	if len(left) < minTitleTokensToCompare || len(right) < minTitleTokensToCompare {
		return Result{Status: types.OutcomeAbstain, Reason: ReasonTitleSimShort}, nil
	}

	score := jaccard(left, right)
	meta := map[string]any{"similarity": score}
	if score >= s.Threshold {
		return Result{Status: types.OutcomeDuplicate, Reason: ReasonTitleSimMatch, Score: ptr(score), Metadata: meta}, nil
	}
	return Result{Status: types.OutcomeDistinct, Reason: ReasonTitleSimMismatch, Metadata: meta}, nil
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// DefaultChain is the built-in strategy chain in spec.md §4.5 step 3's order.
func DefaultChain(titleSimilarityThreshold float64) []Strategy {
	return []Strategy{
		ExactURLStrategy{},
		ContentHashStrategy{},
		TitleSimilarityStrategy{Threshold: titleSimilarityThreshold},
	}
}
