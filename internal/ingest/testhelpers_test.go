package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

type testHarness struct {
	DB            *storage.DB
	Queue         *storage.WriterQueue
	Accounts      *storage.AccountRepo
	Channels      *storage.ChannelRepo
	ChannelStates *storage.ChannelStateRepo
	RawMessages   *storage.RawMessageRepo
	Items         *storage.ItemRepo
	IngestErrors  *storage.IngestErrorRepo
	Notifications *storage.NotificationRepo
	AccountPauses *storage.AccountPauseRepo
	Clusters      *storage.ClusterRepo
	Members       *storage.MemberRepo
	Decisions     *storage.DecisionRepo
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
		DB:            db,
		Queue:         queue,
		Accounts:      storage.NewAccountRepo(db, queue),
		Channels:      storage.NewChannelRepo(db, queue),
		ChannelStates: storage.NewChannelStateRepo(db, queue),
		RawMessages:   storage.NewRawMessageRepo(db, queue),
		Items:         storage.NewItemRepo(db, queue),
		IngestErrors:  storage.NewIngestErrorRepo(db, queue),
		Notifications: storage.NewNotificationRepo(db, queue),
		AccountPauses: storage.NewAccountPauseRepo(db, queue),
		Clusters:      storage.NewClusterRepo(db, queue),
		Members:       storage.NewMemberRepo(db),
		Decisions:     storage.NewDecisionRepo(db),
	}
}

func (h *testHarness) createAccount(t *testing.T) int64 {
	t.Helper()
	now := time.Now().UTC()
	id, err := h.Accounts.Create(context.Background(), &types.Account{
		APIID: 1, APIHashCT: []byte("x"), CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return id
}

func (h *testHarness) createChannel(t *testing.T, accountID int64) int64 {
	t.Helper()
	now := time.Now().UTC()
	id, err := h.Channels.Create(context.Background(), &types.Channel{
		AccountID: accountID, UpstreamChannelID: 1, Name: "c", IsEnabled: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return id
}
