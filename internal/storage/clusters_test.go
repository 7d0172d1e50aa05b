package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/types"
)

// TestClusterMergeMovesMembersAndDeletesEmptyCluster exercises the merge
// mechanics internal/dedupe's cluster.go relies on: assign two items to
// separate clusters, then merge one into the other inside a single writer-
// queue closure, matching spec.md §4.5's smallest-id-wins, indivisible
// merge.
func TestClusterMergeMovesMembersAndDeletesEmptyCluster(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	_, channelID := createTestAccountAndChannel(t, db, queue)

	items := NewItemRepo(db, queue)
	now := time.Now().UTC()
	item1, _, err := items.CreateOrGet(context.Background(), &types.Item{ChannelID: channelID, UpstreamMessageID: 1, CreatedAt: now})
	require.NoError(t, err)
	item2, _, err := items.CreateOrGet(context.Background(), &types.Item{ChannelID: channelID, UpstreamMessageID: 2, CreatedAt: now})
	require.NoError(t, err)

	clusters := NewClusterRepo(db, queue)
	members := NewMemberRepo(db)

	var clusterA, clusterB int64
	require.NoError(t, clusters.Submit(context.Background(), func(tx *sql.Tx) error {
		var err error
		clusterA, err = clusters.CreateTx(tx, "key-a", now)
		if err != nil {
			return err
		}
		if err := members.AddTx(tx, clusterA, item1, now); err != nil {
			return err
		}
		clusterB, err = clusters.CreateTx(tx, "key-b", now)
		if err != nil {
			return err
		}
		return members.AddTx(tx, clusterB, item2, now)
	}))

	// smallest-id-wins: clusterA absorbs clusterB's members, clusterB is
	// deleted once empty.
	require.NoError(t, clusters.Submit(context.Background(), func(tx *sql.Tx) error {
		if err := members.MoveAllTx(tx, clusterB, clusterA); err != nil {
			return err
		}
		return clusters.DeleteEmptyTx(tx, clusterB)
	}))

	memberList, err := members.ListByCluster(context.Background(), clusterA)
	require.NoError(t, err)
	assert.Len(t, memberList, 2)

	_, err = clusters.Get(context.Background(), clusterB)
	assert.Error(t, err, "the emptied cluster must no longer exist")

	n, err := clusters.CountClusters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClusterRepo_SetRepresentative(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	_, channelID := createTestAccountAndChannel(t, db, queue)

	items := NewItemRepo(db, queue)
	now := time.Now().UTC()
	item1, _, err := items.CreateOrGet(context.Background(), &types.Item{ChannelID: channelID, UpstreamMessageID: 1, CreatedAt: now})
	require.NoError(t, err)

	clusters := NewClusterRepo(db, queue)
	var clusterID int64
	require.NoError(t, clusters.Submit(context.Background(), func(tx *sql.Tx) error {
		var err error
		clusterID, err = clusters.CreateTx(tx, "key", now)
		return err
	}))

	require.NoError(t, clusters.Submit(context.Background(), func(tx *sql.Tx) error {
		return clusters.SetRepresentativeTx(tx, clusterID, item1, now)
	}))

	got, err := clusters.Get(context.Background(), clusterID)
	require.NoError(t, err)
	require.NotNil(t, got.RepresentativeItemID)
	assert.Equal(t, item1, *got.RepresentativeItemID)
}
