package dedupe

import (
	"sort"

	"github.com/cuemby/tca/internal/types"
)

// PickRepresentative applies spec.md §4.5 step 5's strict priority order:
// (i) non-empty canonical URL, (ii) maximize len(title)+len(body),
// (iii) non-null published_at (nulls last) then earliest published_at,
// (iv) smallest item id. No cross-rule ties are broken outside this order.
func PickRepresentative(members []types.Item) types.Item {
	ranked := append([]types.Item(nil), members...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		aHasURL, bHasURL := a.CanonicalURL != "", b.CanonicalURL != ""
		if aHasURL != bHasURL {
			return aHasURL
		}

		aLen, bLen := len(a.Title)+len(a.Body), len(b.Title)+len(b.Body)
		if aLen != bLen {
			return aLen > bLen
		}

		aHasPub, bHasPub := a.PublishedAt != nil, b.PublishedAt != nil
		if aHasPub != bHasPub {
			return aHasPub
		}
		if aHasPub && bHasPub && !a.PublishedAt.Equal(*b.PublishedAt) {
			return a.PublishedAt.Before(*b.PublishedAt)
		}

		return a.ID < b.ID
	})
	return ranked[0]
}
