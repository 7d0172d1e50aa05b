package app

import (
	"context"

	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// channelStore composes ChannelRepo and ChannelStateRepo into
// internal/scheduler.ChannelStore's two-method read surface. The scheduler
// only ever sees this adapter, never the concrete repos, the same
// composition-over-god-object shape ingest.Pipeline uses for its own
// collaborators.
type channelStore struct {
	channels *storage.ChannelRepo
	states   *storage.ChannelStateRepo
}

func (c *channelStore) ListSchedulable(ctx context.Context) ([]types.Channel, error) {
	return c.channels.ListSchedulable(ctx)
}

func (c *channelStore) GetState(ctx context.Context, channelID int64) (*types.ChannelState, error) {
	return c.states.GetState(ctx, channelID)
}
