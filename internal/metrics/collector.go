package metrics

import (
	"context"
	"time"
)

// Snapshot is the narrow read-only surface Collector needs to refresh its
// gauges. internal/storage.Snapshot satisfies it; defined here (rather than taking
// a concrete storage type) to avoid metrics importing the storage package.
type Snapshot interface {
	CountChannelsByEnabled(ctx context.Context) (enabled, disabled int, err error)
	CountPausedAccounts(ctx context.Context) (int, error)
	CountClusters(ctx context.Context) (int, error)
	CountPendingItems(ctx context.Context) (int, error)
	CountUnacknowledgedNotifications(ctx context.Context) (int, error)
}

// Collector periodically refreshes the snapshot gauges from the store.
type Collector struct {
	snap   Snapshot
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(snap Snapshot) *Collector {
	return &Collector{
		snap:   snap,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if enabled, disabled, err := c.snap.CountChannelsByEnabled(ctx); err == nil {
		ChannelsTotal.WithLabelValues("true").Set(float64(enabled))
		ChannelsTotal.WithLabelValues("false").Set(float64(disabled))
	}

	if n, err := c.snap.CountPausedAccounts(ctx); err == nil {
		AccountsPausedTotal.Set(float64(n))
	}

	if n, err := c.snap.CountClusters(ctx); err == nil {
		ClustersTotal.Set(float64(n))
	}

	if n, err := c.snap.CountPendingItems(ctx); err == nil {
		ItemsPendingTotal.Set(float64(n))
	}

	if n, err := c.snap.CountUnacknowledgedNotifications(ctx); err == nil {
		NotificationsUnacknowledgedTotal.Set(float64(n))
	}
}
