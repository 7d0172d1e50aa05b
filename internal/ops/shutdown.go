package ops

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cuemby/tca/internal/storage"
)

// SchedulerStopper is the narrow surface Shutdown needs from
// internal/scheduler.Scheduler: stop the tick loop, bounded by the
// scheduler's own shutdown timeout, and return once stopped or timed out.
type SchedulerStopper interface {
	Stop()
}

// UpstreamDisconnector is the minimal upstream client contract's teardown
// half (spec.md §6); nil-safe, since a process that never unlocked an
// account never connected one either.
type UpstreamDisconnector interface {
	Disconnect(ctx context.Context) error
}

// AuthTeardown runs any auth-subsystem cleanup (e.g. flushing an
// in-progress key-rotation's resume state) before the store closes.
type AuthTeardown interface {
	Teardown(ctx context.Context) error
}

// Shutdown runs the ordered sequence spec.md §4.6 names: stop scheduler,
// drain writer queue, disconnect upstream clients, run auth teardown, tear
// down the store. Every step runs even if an earlier one errors, so a
// failure in one collaborator never strands the rest of the process
// mid-teardown; all step errors are returned together.
type Shutdown struct {
	Scheduler SchedulerStopper
	Queue     *storage.WriterQueue
	Upstream  UpstreamDisconnector
	Auth      AuthTeardown
	DB        *storage.DB
	Logger    zerolog.Logger
}

// Run executes the sequence once. ctx bounds the upstream-disconnect and
// auth-teardown steps only; the scheduler stop and writer-queue drain have
// their own internal bounds (scheduler.Config.ShutdownTimeout and the
// writer queue's unconditional drain-to-completion).
func (s *Shutdown) Run(ctx context.Context) error {
	var errs []error

	if s.Scheduler != nil {
		s.Logger.Info().Msg("shutdown: stopping scheduler")
		s.Scheduler.Stop()
	}

	if s.Queue != nil {
		s.Logger.Info().Msg("shutdown: draining writer queue")
		s.Queue.Stop()
	}

	if s.Upstream != nil {
		s.Logger.Info().Msg("shutdown: disconnecting upstream clients")
		if err := s.Upstream.Disconnect(ctx); err != nil {
			s.Logger.Error().Err(err).Msg("shutdown: upstream disconnect failed")
			errs = append(errs, err)
		}
	}

	if s.Auth != nil {
		s.Logger.Info().Msg("shutdown: running auth teardown")
		if err := s.Auth.Teardown(ctx); err != nil {
			s.Logger.Error().Err(err).Msg("shutdown: auth teardown failed")
			errs = append(errs, err)
		}
	}

	if s.DB != nil {
		s.Logger.Info().Msg("shutdown: closing store")
		if err := s.DB.Close(); err != nil {
			s.Logger.Error().Err(err).Msg("shutdown: store close failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
