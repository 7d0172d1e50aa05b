package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/types"
)

type fakeStore struct {
	channels []types.Channel
	states   map[int64]*types.ChannelState
}

func (f *fakeStore) ListSchedulable(ctx context.Context) ([]types.Channel, error) {
	return f.channels, nil
}

func (f *fakeStore) GetState(ctx context.Context, channelID int64) (*types.ChannelState, error) {
	return f.states[channelID], nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []int64
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, channelID int64, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, channelID)
	return nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

type fakeSettings struct {
	interval int
}

func (f *fakeSettings) PollIntervalSeconds(ctx context.Context) (int, error) {
	return f.interval, nil
}

func TestScheduler_TickEnqueuesEligibleChannels(t *testing.T) {
	store := &fakeStore{
		channels: []types.Channel{
			{ID: 1, AccountID: 10},
			{ID: 2, AccountID: 10},
		},
		states: map[int64]*types.ChannelState{
			1: {}, // no last_success_at: immediately eligible
			2: {LastSuccessAt: timePtr(time.Now().Add(-time.Hour))},
		},
	}
	queue := &fakeEnqueuer{}
	settings := &fakeSettings{interval: 60}

	s := New(store, queue, settings, zerolog.Nop(), Config{RandSource: fixedRand(0.5)})

	require.NoError(t, s.tick(context.Background()))
	assert.Equal(t, 2, queue.count())
}

func TestScheduler_TickSkipsIneligibleChannels(t *testing.T) {
	store := &fakeStore{
		channels: []types.Channel{{ID: 1, AccountID: 10}},
		states: map[int64]*types.ChannelState{
			1: {LastSuccessAt: timePtr(time.Now())},
		},
	}
	queue := &fakeEnqueuer{}
	settings := &fakeSettings{interval: 600}

	s := New(store, queue, settings, zerolog.Nop(), Config{RandSource: fixedRand(0.5)})

	require.NoError(t, s.tick(context.Background()))
	assert.Equal(t, 0, queue.count())
}

func TestScheduler_AccountLimiterThrottlesBurst(t *testing.T) {
	var channels []types.Channel
	states := make(map[int64]*types.ChannelState)
	for i := int64(1); i <= 50; i++ {
		channels = append(channels, types.Channel{ID: i, AccountID: 99})
		states[i] = &types.ChannelState{}
	}
	store := &fakeStore{channels: channels, states: states}
	queue := &fakeEnqueuer{}
	settings := &fakeSettings{interval: 60}

	s := New(store, queue, settings, zerolog.Nop(), Config{RandSource: fixedRand(0.5)})

	require.NoError(t, s.tick(context.Background()))
	assert.Less(t, queue.count(), 50, "the per-account limiter should cap how many channels enqueue in one tick")
}

func TestScheduler_StartStop(t *testing.T) {
	store := &fakeStore{}
	queue := &fakeEnqueuer{}
	settings := &fakeSettings{interval: 60}

	s := New(store, queue, settings, zerolog.Nop(), Config{TickInterval: 10 * time.Millisecond})
	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()
}

func timePtr(t time.Time) *time.Time { return &t }
