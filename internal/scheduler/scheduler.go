package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cuemby/tca/internal/metrics"
	"github.com/cuemby/tca/internal/types"
)

// ChannelStore is the narrow read surface the scheduler needs. Defined
// here rather than importing the storage package; internal/app adapts
// ChannelRepo and ChannelStateRepo to it. The same narrow-interface shape
// internal/metrics.Snapshot uses.
type ChannelStore interface {
	// ListSchedulable returns channels with is_enabled=true whose owning
	// account is not paused (spec.md §4.4 step 1).
	ListSchedulable(ctx context.Context) ([]types.Channel, error)
	// GetState returns the polling state for a channel (step 2).
	GetState(ctx context.Context, channelID int64) (*types.ChannelState, error)
}

// PollEnqueuer enqueues a poll job for a channel, carrying a fresh
// correlation id, through the writer queue.
type PollEnqueuer interface {
	Enqueue(ctx context.Context, channelID int64, correlationID string) error
}

// SettingsResolver resolves the dynamic poll-interval setting.
type SettingsResolver interface {
	PollIntervalSeconds(ctx context.Context) (int, error)
}

// Scheduler drives poll-job enqueue on a cooperative ticker loop, shaped
// like the teacher's container-placement loop
// (_examples/cuemby-warren/pkg/scheduler/scheduler.go): one ticker, one
// stop channel, one mutex-guarded cycle function.
type Scheduler struct {
	store    ChannelStore
	queue    PollEnqueuer
	settings SettingsResolver
	logger   zerolog.Logger
	rnd      RandSource

	tickInterval    time.Duration
	shutdownTimeout time.Duration

	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	limiters map[int64]*rate.Limiter
	limMu    sync.Mutex
}

// Config configures a Scheduler.
type Config struct {
	TickInterval    time.Duration // default 1s, per spec.md §4.4
	ShutdownTimeout time.Duration
	RandSource      RandSource // defaults to math/rand if nil
}

// New creates a Scheduler. store, queue, and settings are required
// collaborators; logger is typically scoped with log.WithComponent.
func New(store ChannelStore, queue PollEnqueuer, settings SettingsResolver, logger zerolog.Logger, cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RandSource == nil {
		cfg.RandSource = rand.Float64
	}

	return &Scheduler{
		store:           store,
		queue:           queue,
		settings:        settings,
		logger:          logger,
		rnd:             cfg.RandSource,
		tickInterval:    cfg.TickInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		limiters:        make(map[int64]*rate.Limiter),
	}
}

// Start begins the scheduler loop. Callers must not invoke Start before
// every startup step spec.md §4.4 names (migrations, settings seed, auth
// unlock, bootstrap token, telegram manager) has completed.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop signals the loop to exit and waits up to shutdownTimeout for the
// in-flight tick to finish; a hung tick is abandoned (not cancelled
// mid-transaction — the writer queue itself owns that guarantee) so
// teardown can still proceed.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn().Msg("scheduler shutdown timed out, proceeding with teardown")
	}
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.SchedulerTicksTotal.Inc()
			timer := metrics.NewTimer()
			if err := s.tick(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("scheduler tick failed")
			}
			timer.ObserveDuration(metrics.SchedulerTickDuration)
		case <-s.stopCh:
			return
		}
	}
}

// tick performs one scheduling cycle: spec.md §4.4 steps 1-5.
func (s *Scheduler) tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels, err := s.store.ListSchedulable(ctx)
	if err != nil {
		return fmt.Errorf("list schedulable channels: %w", err)
	}

	pollIntervalSeconds, err := s.settings.PollIntervalSeconds(ctx)
	if err != nil {
		return fmt.Errorf("resolve poll interval: %w", err)
	}
	pollInterval := time.Duration(pollIntervalSeconds) * time.Second

	now := time.Now().UTC()

	for _, ch := range channels {
		state, err := s.store.GetState(ctx, ch.ID)
		if err != nil {
			s.logger.Error().Err(err).Int64("channel_id", ch.ID).Msg("load channel state failed")
			continue
		}

		if !eligible(state, pollInterval, s.rnd, defaultJitterRatio, now) {
			continue
		}

		metrics.ChannelsEligibleTotal.Inc()

		if !s.accountLimiter(ch.AccountID).Allow() {
			continue
		}

		correlationID := uuid.New().String()
		if err := s.queue.Enqueue(ctx, ch.ID, correlationID); err != nil {
			s.logger.Error().Err(err).Int64("channel_id", ch.ID).Msg("enqueue poll job failed")
			continue
		}
		metrics.PollJobsEnqueuedTotal.Inc()
	}

	return nil
}

// accountLimiter returns the per-account token-bucket limiter, creating
// one on first use. This throttles a burst of eligible channels on one
// account (e.g. coming off a flood-wait cool-down) from all being
// enqueued in the same tick — additive hygiene beyond spec.md's literal
// algorithm, grounded on golang.org/x/time/rate's per-key limiter map
// shape in _examples/adred-codev-ws_poc/ws's ConnectionRateLimiter.
func (s *Scheduler) accountLimiter(accountID int64) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()

	lim, ok := s.limiters[accountID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(5), 5)
		s.limiters[accountID] = lim
	}
	return lim
}
