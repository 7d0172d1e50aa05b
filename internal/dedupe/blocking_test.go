package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/types"
)

type fakePool struct {
	items []types.Item
}

func (p fakePool) ListCandidates(_ context.Context, publishedAt time.Time, horizon time.Duration) ([]types.Item, error) {
	from, to := publishedAt.Add(-horizon), publishedAt.Add(horizon)
	var out []types.Item
	for _, it := range p.items {
		if it.PublishedAt == nil {
			continue
		}
		if it.PublishedAt.Before(from) || it.PublishedAt.After(to) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func at(minute int) *time.Time {
	t := time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC)
	return &t
}

func TestSelectCandidates_MatchesByCanonicalURLHash(t *testing.T) {
	pool := fakePool{items: []types.Item{
		{ID: 1, Title: "alpha bravo charlie delta", PublishedAt: at(0), CanonicalURLHash: "h1"},
		{ID: 2, Title: "echo foxtrot golf hotel", PublishedAt: at(1), CanonicalURLHash: "h1"},
		{ID: 3, Title: "india juliet kilo lima", PublishedAt: at(2), CanonicalURLHash: "h2"},
	}}
	item := types.Item{ID: 1, Title: "alpha bravo charlie delta", PublishedAt: at(0), CanonicalURLHash: "h1"}

	candidates, err := SelectCandidates(context.Background(), pool, item, time.Hour, 3)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(2), candidates[0].ID)
}

func TestSelectCandidates_EnforcesHardCapAndAscendingOrder(t *testing.T) {
	var items []types.Item
	for i := int64(1); i <= 80; i++ {
		items = append(items, types.Item{ID: i, Title: "zzzznique" + string(rune('a'+i%26)), PublishedAt: at(int(i)), CanonicalURLHash: "shared"})
	}
	pool := fakePool{items: items}
	item := types.Item{ID: 1, Title: "zzzzniquea", PublishedAt: at(1), CanonicalURLHash: "shared"}

	candidates, err := SelectCandidates(context.Background(), pool, item, time.Hour, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(candidates), MaxCandidates)
	for i := 1; i < len(candidates); i++ {
		assert.Less(t, candidates[i-1].ID, candidates[i].ID)
	}
}

func TestSelectCandidates_ExcludesSelf(t *testing.T) {
	pool := fakePool{items: []types.Item{
		{ID: 1, Title: "solo", PublishedAt: at(0), CanonicalURLHash: "h1"},
	}}
	candidates, err := SelectCandidates(context.Background(), pool, pool.items[0], time.Hour, 3)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
