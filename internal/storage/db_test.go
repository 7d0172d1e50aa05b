package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesReadAndWriteHandles(t *testing.T) {
	db := newTestDB(t)
	assert.NotNil(t, db.ReadPool)
	assert.NotNil(t, db.WriteConn)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	// applying a second time must not error (ErrNoChange is swallowed)
	require.NoError(t, Migrate(db))
}

func TestMigrate_ForeignKeysEnforced(t *testing.T) {
	db := newTestDB(t)

	_, err := db.WriteConn.Exec(`INSERT INTO channels (account_id, upstream_channel_id, name, created_at, updated_at)
		VALUES (999, 1, 'nope', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.Error(t, err)
}
