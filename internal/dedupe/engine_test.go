package dedupe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *storage.ItemRepo, *storage.ClusterRepo, *storage.MemberRepo, int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tca.db")
	db, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))

	queue := storage.NewWriterQueue(db, 16)
	queue.Start()
	t.Cleanup(queue.Stop)

	accounts := storage.NewAccountRepo(db, queue)
	channels := storage.NewChannelRepo(db, queue)
	items := storage.NewItemRepo(db, queue)
	clusters := storage.NewClusterRepo(db, queue)
	members := storage.NewMemberRepo(db)
	decisions := storage.NewDecisionRepo(db)

	now := time.Now().UTC()
	accountID, err := accounts.Create(context.Background(), &types.Account{APIID: 1, APIHashCT: []byte("x"), CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	channelID, err := channels.Create(context.Background(), &types.Channel{AccountID: accountID, UpstreamChannelID: 1, Name: "c", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	engine := NewEngine(items, clusters, members, decisions, DefaultChain(0.92), 3)
	return engine, items, clusters, members, channelID
}

func createItem(t *testing.T, items *storage.ItemRepo, channelID, msgID int64, title, body, urlHash string, publishedAt time.Time) types.Item {
	t.Helper()
	id, _, err := items.CreateOrGet(context.Background(), &types.Item{
		ChannelID: channelID, UpstreamMessageID: msgID, Title: title, Body: body,
		CanonicalURLHash: urlHash, PublishedAt: &publishedAt, DedupeState: types.DedupeStatePending, CreatedAt: publishedAt,
	})
	require.NoError(t, err)
	it, err := items.Get(context.Background(), id)
	require.NoError(t, err)
	return *it
}

func TestProcessItem_NoMatchCreatesNewCluster(t *testing.T) {
	engine, items, clusters, _, channelID := newTestEngine(t)
	now := time.Now().UTC()

	item := createItem(t, items, channelID, 1, "a totally unique headline about nothing", "body", "", now)
	require.NoError(t, engine.ProcessItem(context.Background(), item, 1440))

	got, err := items.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DedupeStateDone, got.DedupeState)

	n, err := clusters.CountClusters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcessItem_ExactURLMatchJoinsExistingCluster(t *testing.T) {
	engine, items, clusters, members, channelID := newTestEngine(t)
	now := time.Now().UTC()

	first := createItem(t, items, channelID, 1, "first headline here", "body one", "same-hash", now)
	require.NoError(t, engine.ProcessItem(context.Background(), first, 1440))

	second := createItem(t, items, channelID, 2, "second headline here", "body two", "same-hash", now.Add(time.Minute))
	require.NoError(t, engine.ProcessItem(context.Background(), second, 1440))

	n, err := clusters.CountClusters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "both items sharing a canonical URL hash should land in one cluster")

	clusterID, err := members.GetClusterForItem(context.Background(), first.ID)
	require.NoError(t, err)
	require.NotNil(t, clusterID)

	m, err := members.ListByCluster(context.Background(), *clusterID)
	require.NoError(t, err)
	assert.Len(t, m, 2)
}

func TestProcessItem_ExactURLMatchLeavesOtherClusterUntouched(t *testing.T) {
	engine, items, clusters, _, channelID := newTestEngine(t)
	now := time.Now().UTC()

	a := createItem(t, items, channelID, 1, "alpha headline standalone", "alpha body text", "hash-a", now)
	require.NoError(t, engine.ProcessItem(context.Background(), a, 1440))
	b := createItem(t, items, channelID, 2, "bravo headline standalone", "bravo body text", "hash-b", now.Add(time.Minute))
	require.NoError(t, engine.ProcessItem(context.Background(), b, 1440))

	n, err := clusters.CountClusters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "two distinct items should start in two distinct clusters")

	// c shares a's canonical URL hash, so the chain's first strategy
	// (exact_url) matches only against a; b remains in its own cluster.
	c := createItem(t, items, channelID, 3, "charlie headline standalone", "charlie body text", "hash-a", now.Add(2*time.Minute))
	require.NoError(t, engine.ProcessItem(context.Background(), c, 1440))

	n, err = clusters.CountClusters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "c joining a's cluster must not touch b's cluster")
}
