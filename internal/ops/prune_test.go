package ops

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPruner(h *testHarness) *Pruner {
	return &Pruner{
		RawMessages:  h.RawMessages,
		Items:        h.Items,
		Clusters:     h.Clusters,
		Members:      h.Members,
		Decisions:    h.Decisions,
		IngestErrors: h.IngestErrors,
		Queue:        h.Queue,
		Resolver:     h.Resolver,
		Logger:       zerolog.Nop(),
	}
}

// createCluster creates a cluster with the given members, in one writer
// closure, and sets its representative explicitly so prune tests can
// assert on the post-prune recompute.
func (h *testHarness) createCluster(t *testing.T, key string, memberItemIDs []int64, representativeItemID int64) int64 {
	t.Helper()
	now := time.Now().UTC()
	var clusterID int64
	err := h.Clusters.Submit(context.Background(), func(tx *sql.Tx) error {
		var err error
		clusterID, err = h.Clusters.CreateTx(tx, key, now)
		if err != nil {
			return err
		}
		for _, itemID := range memberItemIDs {
			if err := h.Members.AddTx(tx, clusterID, itemID, now); err != nil {
				return err
			}
		}
		return h.Clusters.SetRepresentativeTx(tx, clusterID, representativeItemID, now)
	})
	require.NoError(t, err)
	return clusterID
}

func TestPruner_Run_DeletesOldRawMessagesAndIngestErrors(t *testing.T) {
	h := newHarness(t)
	channelID := h.createAccountAndChannel(t)

	old := time.Now().UTC().AddDate(0, 0, -40)
	recent := time.Now().UTC()

	h.createRawMessage(t, channelID, 1, old)
	h.createRawMessage(t, channelID, 2, recent)
	h.createIngestError(t, channelID, time.Now().UTC().AddDate(0, 0, -100))
	h.createIngestError(t, channelID, recent)

	p := newPruner(h)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.RawMessagesDeleted)
	assert.Equal(t, int64(1), result.IngestErrorsDeleted)

	remaining, err := h.RawMessages.GetByUpstreamMessageID(context.Background(), channelID, 2)
	require.NoError(t, err)
	assert.NotNil(t, remaining)

	_, err = h.RawMessages.GetByUpstreamMessageID(context.Background(), channelID, 1)
	assert.Error(t, err, "old raw message should have been pruned")
}

func TestPruner_Run_ItemRetentionZeroRetainsForever(t *testing.T) {
	h := newHarness(t)
	channelID := h.createAccountAndChannel(t)

	veryOld := time.Now().UTC().AddDate(-5, 0, 0)
	h.createItem(t, channelID, 1, veryOld)
	h.setItemsRetentionDays(t, 0)

	p := newPruner(h)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.ItemsDeleted, "items_days=0 must bypass the item-deletion step")
}

func TestPruner_Run_RecomputesRepresentativeAfterDeletingClusterMember(t *testing.T) {
	h := newHarness(t)
	channelID := h.createAccountAndChannel(t)

	old := time.Now().UTC().AddDate(0, 0, -400)
	recent := time.Now().UTC()

	oldItemID := h.createItem(t, channelID, 1, old)
	recentItemID := h.createItem(t, channelID, 2, recent)
	clusterID := h.createCluster(t, "cluster-1", []int64{oldItemID, recentItemID}, oldItemID)

	p := newPruner(h)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ItemsDeleted)
	assert.Equal(t, 1, result.ClustersRecomputed)

	cluster, err := h.Clusters.Get(context.Background(), clusterID)
	require.NoError(t, err)
	require.NotNil(t, cluster.RepresentativeItemID)
	assert.Equal(t, recentItemID, *cluster.RepresentativeItemID, "representative must move off the deleted item")
}

func TestPruner_Run_DeletesEmptiedClusters(t *testing.T) {
	h := newHarness(t)
	channelID := h.createAccountAndChannel(t)

	old := time.Now().UTC().AddDate(0, 0, -400)
	onlyItemID := h.createItem(t, channelID, 1, old)
	clusterID := h.createCluster(t, "cluster-solo", []int64{onlyItemID}, onlyItemID)

	p := newPruner(h)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ClustersDeleted)

	_, err = h.Clusters.Get(context.Background(), clusterID)
	assert.Error(t, err, "emptied cluster should have been deleted")
}
