package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/security"
	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

type testHarness struct {
	DB          *storage.DB
	Queue       *storage.WriterQueue
	Settings    *storage.SettingRepo
	Accounts    *storage.AccountRepo
	KeyRotation *storage.KeyRotationRepo
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tca.db")
	db, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))

	queue := storage.NewWriterQueue(db, 16)
	queue.Start()
	t.Cleanup(queue.Stop)

	return &testHarness{
		DB:          db,
		Queue:       queue,
		Settings:    storage.NewSettingRepo(db, queue),
		Accounts:    storage.NewAccountRepo(db, queue),
		KeyRotation: storage.NewKeyRotationRepo(db, queue),
	}
}

// createAccount inserts an account whose api_hash_ct/session_ct are sealed
// under kek, so rotation tests can exercise a real rewrap round-trip.
func (h *testHarness) createAccount(t *testing.T, kek *security.KEK, apiHash, session string) int64 {
	t.Helper()
	apiHashCT, err := kek.Seal([]byte(apiHash))
	require.NoError(t, err)
	sessionCT, err := kek.Seal([]byte(session))
	require.NoError(t, err)

	now := time.Now().UTC()
	id, err := h.Accounts.Create(context.Background(), &types.Account{
		APIID: 1, APIHashCT: apiHashCT, SessionCT: sessionCT, KeyVersion: 1, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return id
}
