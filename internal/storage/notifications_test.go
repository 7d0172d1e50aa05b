package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/types"
)

func TestNotificationRepo_AcknowledgeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	repo := NewNotificationRepo(db, queue)

	now := time.Now().UTC()
	id, err := repo.Create(context.Background(), &types.Notification{
		Type: "account-risk", Severity: types.SeverityHigh, Message: "account paused", CreatedAt: now,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Acknowledge(context.Background(), id, now))
	require.NoError(t, repo.Acknowledge(context.Background(), id, now.Add(time.Minute)), "acknowledging twice must not error")

	unacked, err := repo.ListUnacknowledged(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unacked)
}

func TestNotificationRepo_CountUnacknowledged(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	repo := NewNotificationRepo(db, queue)

	now := time.Now().UTC()
	_, err := repo.Create(context.Background(), &types.Notification{Type: "a", Severity: types.SeverityLow, Message: "m1", CreatedAt: now})
	require.NoError(t, err)
	id2, err := repo.Create(context.Background(), &types.Notification{Type: "b", Severity: types.SeverityMedium, Message: "m2", CreatedAt: now})
	require.NoError(t, err)

	require.NoError(t, repo.Acknowledge(context.Background(), id2, now))

	n, err := repo.CountUnacknowledged(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
