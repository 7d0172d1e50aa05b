package storage

import "context"

// Snapshot composes the repositories into the narrow read surface
// internal/metrics.Collector needs, satisfying internal/metrics.Snapshot
// without metrics importing this package.
type Snapshot struct {
	Accounts      *AccountRepo
	Channels      *ChannelRepo
	Clusters      *ClusterRepo
	Items         *ItemRepo
	Notifications *NotificationRepo
}

func (s *Snapshot) CountChannelsByEnabled(ctx context.Context) (enabled, disabled int, err error) {
	return s.Channels.CountByEnabled(ctx)
}

func (s *Snapshot) CountPausedAccounts(ctx context.Context) (int, error) {
	return s.Accounts.CountPaused(ctx)
}

func (s *Snapshot) CountClusters(ctx context.Context) (int, error) {
	return s.Clusters.CountClusters(ctx)
}

func (s *Snapshot) CountPendingItems(ctx context.Context) (int, error) {
	return s.Items.CountPending(ctx)
}

func (s *Snapshot) CountUnacknowledgedNotifications(ctx context.Context) (int, error) {
	return s.Notifications.CountUnacknowledged(ctx)
}
