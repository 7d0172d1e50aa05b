package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/types"
)

const testTargetKeyVersion = 2

func seedThreeAccounts(t *testing.T, db *DB, queue *WriterQueue) {
	t.Helper()
	accounts := NewAccountRepo(db, queue)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := accounts.Create(context.Background(), &types.Account{APIID: int64(1000 + i), APIHashCT: []byte("x"), CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
	}
}

// TestRotationStatePersistsProgress mirrors
// original_source/tests/auth/test_key_rotation_resume.py's
// test_rotation_state_persists_progress.
func TestRotationStatePersistsProgress(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	seedThreeAccounts(t, db, queue)

	repo := NewKeyRotationRepo(db, queue)
	now := time.Now().UTC()
	require.NoError(t, repo.BeginRotation(context.Background(), testTargetKeyVersion, now))

	nextID, err := repo.NextPendingAccountID(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, nextID)
	assert.Equal(t, int64(1), *nextID)

	require.NoError(t, repo.MarkAccountRotated(context.Background(), *nextID, now))

	state, err := repo.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.LastRotatedAccountID)
}

// TestInterruptedRotationResumesAtNextPendingRow mirrors
// original_source/tests/auth/test_key_rotation_resume.py's
// test_interrupted_rotation_resumes_at_next_pending_row: a second
// KeyRotationRepo value (standing in for a fresh process after a crash)
// must resume from last_rotated_account_id+1, not from the beginning.
func TestInterruptedRotationResumesAtNextPendingRow(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	seedThreeAccounts(t, db, queue)

	repo := NewKeyRotationRepo(db, queue)
	now := time.Now().UTC()
	require.NoError(t, repo.BeginRotation(context.Background(), testTargetKeyVersion, now))
	require.NoError(t, repo.MarkAccountRotated(context.Background(), 1, now))

	resumed := NewKeyRotationRepo(db, queue)
	state, err := resumed.GetState(context.Background())
	require.NoError(t, err)

	nextID, err := resumed.NextPendingAccountID(context.Background(), state.LastRotatedAccountID)
	require.NoError(t, err)
	require.NotNil(t, nextID)
	assert.Equal(t, int64(2), *nextID)
}

func TestCompleteIfFinished_OnlyAfterEveryAccountRotated(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	seedThreeAccounts(t, db, queue)

	repo := NewKeyRotationRepo(db, queue)
	now := time.Now().UTC()
	require.NoError(t, repo.BeginRotation(context.Background(), testTargetKeyVersion, now))

	for _, id := range []int64{1, 2} {
		require.NoError(t, repo.MarkAccountRotated(context.Background(), id, now))
		completed, err := repo.CompleteIfFinished(context.Background(), now)
		require.NoError(t, err)
		assert.False(t, completed, "rotation must not complete before every account has rotated")
	}

	require.NoError(t, repo.MarkAccountRotated(context.Background(), 3, now))
	completed, err := repo.CompleteIfFinished(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, completed)

	state, err := repo.GetState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state.CompletedAt)
}

func TestBeginRotation_RestartReusesProgressForSameVersion(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	seedThreeAccounts(t, db, queue)

	repo := NewKeyRotationRepo(db, queue)
	now := time.Now().UTC()
	require.NoError(t, repo.BeginRotation(context.Background(), testTargetKeyVersion, now))
	require.NoError(t, repo.MarkAccountRotated(context.Background(), 1, now))

	// simulating a restart that re-issues BeginRotation for the same
	// in-flight version must not reset last_rotated_account_id to 0.
	require.NoError(t, repo.BeginRotation(context.Background(), testTargetKeyVersion, now.Add(time.Minute)))

	state, err := repo.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.LastRotatedAccountID)
}
