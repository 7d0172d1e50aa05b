package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/types"
)

func TestMapSQLiteErr_ForeignKeyViolationBecomesConflict(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)

	channels := NewChannelRepo(db, queue)
	now := time.Now().UTC()
	_, err := channels.Create(context.Background(), &types.Channel{
		AccountID: 999, UpstreamChannelID: 1, Name: "orphan", CreatedAt: now, UpdatedAt: now,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConflict))
}

func TestMapSQLiteErr_UniqueViolationBecomesConflict(t *testing.T) {
	db := newTestDB(t)
	queue := newTestQueue(t, db)
	_, channelID := createTestAccountAndChannel(t, db, queue)

	raw := NewRawMessageRepo(db, queue)
	now := time.Now().UTC()
	_, err := raw.Create(context.Background(), &types.RawMessage{ChannelID: channelID, UpstreamMessageID: 1, PayloadJSON: []byte(`{}`), CreatedAt: now})
	require.NoError(t, err)

	_, err = raw.Create(context.Background(), &types.RawMessage{ChannelID: channelID, UpstreamMessageID: 1, PayloadJSON: []byte(`{}`), CreatedAt: now})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConflict))
}

func TestMapSQLiteErr_PassesThroughNonSQLiteErrors(t *testing.T) {
	err := mapSQLiteErr("op", sql.ErrNoRows)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
