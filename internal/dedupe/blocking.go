package dedupe

import (
	"context"
	"sort"
	"time"

	"github.com/cuemby/tca/internal/types"
)

// MaxCandidates is the hard cap on candidate count spec.md §4.5 step 1
// requires (default 50).
const MaxCandidates = 50

// CandidatePool fetches the prior items eligible as blocking candidates
// within a dedupe horizon window, the read side internal/storage.ItemRepo
// provides.
type CandidatePool interface {
	ListCandidates(ctx context.Context, publishedAt time.Time, horizon time.Duration) ([]types.Item, error)
}

// SelectCandidates implements spec.md §4.5 step 1: reduce the horizon's
// item pool down to the ones sharing a blocking key with item (identical
// canonical_url_hash, identical URL domain, or at least one shared rare
// title token), capped at MaxCandidates, ordered by ascending item id.
func SelectCandidates(ctx context.Context, pool CandidatePool, item types.Item, horizon time.Duration, rareTokenMaxFrequency int) ([]types.Item, error) {
	at := time.Now().UTC()
	if item.PublishedAt != nil {
		at = item.PublishedAt.UTC()
	}

	window, err := pool.ListCandidates(ctx, at, horizon)
	if err != nil {
		return nil, err
	}

	frequency := titleTokenFrequency(window)
	rare := rareTokens(TitleTokens(item.Title), frequency, rareTokenMaxFrequency)
	itemDomain := URLDomain(item.CanonicalURL)

	var candidates []types.Item
	for _, other := range window {
		if other.ID == item.ID {
			continue
		}
		if sharesBlockingKey(item, other, itemDomain, rare) {
			candidates = append(candidates, other)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates, nil
}

func sharesBlockingKey(item, other types.Item, itemDomain string, rare map[string]bool) bool {
	if item.CanonicalURLHash != "" && item.CanonicalURLHash == other.CanonicalURLHash {
		return true
	}
	if itemDomain != "" && itemDomain == URLDomain(other.CanonicalURL) {
		return true
	}
	for tok := range TitleTokens(other.Title) {
		if rare[tok] {
			return true
		}
	}
	return false
}

// titleTokenFrequency computes document frequency of every title token
// across the candidate window, the population a token's rarity is judged
// against.
func titleTokenFrequency(window []types.Item) map[string]int {
	freq := map[string]int{}
	for _, it := range window {
		for tok := range TitleTokens(it.Title) {
			freq[tok]++
		}
	}
	return freq
}

// rareTokens returns the subset of tokens whose document frequency within
// the window is at most maxFrequency — the "rare title token" Open
// Question's resolution (SPEC_FULL.md §4.5).
func rareTokens(tokens map[string]bool, frequency map[string]int, maxFrequency int) map[string]bool {
	rare := map[string]bool{}
	for tok := range tokens {
		if frequency[tok] <= maxFrequency {
			rare[tok] = true
		}
	}
	return rare
}
