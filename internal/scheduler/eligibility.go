package scheduler

import (
	"time"

	"github.com/cuemby/tca/internal/types"
)

// eligible implements spec.md §4.4 steps 3-5 for one channel: paused
// channels are never eligible; a channel with no recorded success is
// immediately eligible; otherwise next_run_at = last_success_at +
// (poll_interval + jitter), compared in UTC.
func eligible(state *types.ChannelState, pollInterval time.Duration, rnd RandSource, jitterRatio float64, now time.Time) bool {
	now = now.UTC()

	if state.PausedUntil != nil && state.PausedUntil.UTC().After(now) {
		return false
	}

	if state.LastSuccessAt == nil {
		return true
	}

	nextRunAt := state.LastSuccessAt.UTC().Add(pollInterval + jitter(pollInterval, jitterRatio, rnd))
	return !nextRunAt.After(now)
}
