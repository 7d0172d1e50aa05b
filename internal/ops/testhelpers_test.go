package ops

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/settings"
	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

type testHarness struct {
	DB            *storage.DB
	Queue         *storage.WriterQueue
	Settings      *storage.SettingRepo
	RawMessages   *storage.RawMessageRepo
	Items         *storage.ItemRepo
	Clusters      *storage.ClusterRepo
	Members       *storage.MemberRepo
	Decisions     *storage.DecisionRepo
	IngestErrors  *storage.IngestErrorRepo
	Notifications *storage.NotificationRepo
	Resolver      *settings.Resolver
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

	settingRepo := storage.NewSettingRepo(db, queue)
	resolver := settings.NewResolver(settingRepo, storage.NewGroupRepo(db, queue))
	require.NoError(t, resolver.SeedDefaults(context.Background()))

	return &testHarness{
		DB:            db,
		Queue:         queue,
		Settings:      settingRepo,
		RawMessages:   storage.NewRawMessageRepo(db, queue),
		Items:         storage.NewItemRepo(db, queue),
		Clusters:      storage.NewClusterRepo(db, queue),
		Members:       storage.NewMemberRepo(db),
		Decisions:     storage.NewDecisionRepo(db),
		IngestErrors:  storage.NewIngestErrorRepo(db, queue),
		Notifications: storage.NewNotificationRepo(db, queue),
		Resolver:      resolver,
	}
}

func (h *testHarness) createAccountAndChannel(t *testing.T) int64 {
	t.Helper()
	now := time.Now().UTC()
	accounts := storage.NewAccountRepo(h.DB, h.Queue)
	accountID, err := accounts.Create(context.Background(), &types.Account{
		APIID: 1, APIHashCT: []byte("x"), CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	channels := storage.NewChannelRepo(h.DB, h.Queue)
	channelID, err := channels.Create(context.Background(), &types.Channel{
		AccountID: accountID, UpstreamChannelID: 1, Name: "c", IsEnabled: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return channelID
}

// createRawMessage inserts a raw_messages row with an explicit createdAt,
// so prune tests can exercise the age-based cutoff directly.
func (h *testHarness) createRawMessage(t *testing.T, channelID, upstreamMessageID int64, createdAt time.Time) int64 {
	t.Helper()
	id, err := h.RawMessages.Create(context.Background(), &types.RawMessage{
		ChannelID: channelID, UpstreamMessageID: upstreamMessageID, PayloadJSON: []byte(`{}`), CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return id
}

// createItem inserts an item row with an explicit createdAt.
func (h *testHarness) createItem(t *testing.T, channelID, upstreamMessageID int64, createdAt time.Time) int64 {
	t.Helper()
	id, _, err := h.Items.CreateOrGet(context.Background(), &types.Item{
		ChannelID: channelID, UpstreamMessageID: upstreamMessageID,
		Title: "t", Body: "b", DedupeState: types.DedupeStateDone, CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return id
}

// createIngestError inserts an ingest_errors row with an explicit createdAt.
func (h *testHarness) createIngestError(t *testing.T, channelID int64, createdAt time.Time) int64 {
	t.Helper()
	id, err := h.IngestErrors.Create(context.Background(), &types.IngestError{
		ChannelID: &channelID, Stage: types.StageFetch, ErrorCode: "x", ErrorMessage: "x", CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return id
}

// setItemsRetentionDays overwrites the seeded retention.items_days
// setting, letting prune tests exercise the "retain forever" (0) bypass
// without waiting out the seeded default.
func (h *testHarness) setItemsRetentionDays(t *testing.T, days int) {
	t.Helper()
	value, err := settings.Encode(days)
	require.NoError(t, err)
	require.NoError(t, h.Settings.Set(context.Background(), "retention.items_days", value, time.Now().UTC()))
}
