package ops

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct{ stopped bool }

func (f *fakeScheduler) Stop() { f.stopped = true }

type fakeUpstream struct {
	disconnected bool
	err          error
}

func (f *fakeUpstream) Disconnect(ctx context.Context) error {
	f.disconnected = true
	return f.err
}

type fakeAuth struct {
	tornDown bool
	err      error
}

func (f *fakeAuth) Teardown(ctx context.Context) error {
	f.tornDown = true
	return f.err
}

func TestShutdown_Run_RunsEveryStep(t *testing.T) {
	h := newHarness(t)

	sched := &fakeScheduler{}
	upstream := &fakeUpstream{}
	auth := &fakeAuth{}

	s := &Shutdown{
		Scheduler: sched,
		Queue:     h.Queue,
		Upstream:  upstream,
		Auth:      auth,
		DB:        h.DB,
		Logger:    zerolog.Nop(),
	}

	err := s.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, sched.stopped)
	assert.True(t, upstream.disconnected)
	assert.True(t, auth.tornDown)

	// The writer queue must refuse further submissions once stopped.
	submitErr := h.Queue.Submit(context.Background(), func(tx *sql.Tx) error { return nil })
	assert.Error(t, submitErr)
}

func TestShutdown_Run_ContinuesPastStepFailuresAndJoinsErrors(t *testing.T) {
	h := newHarness(t)

	upstream := &fakeUpstream{err: errors.New("disconnect failed")}
	auth := &fakeAuth{err: errors.New("teardown failed")}

	s := &Shutdown{
		Queue:    h.Queue,
		Upstream: upstream,
		Auth:     auth,
		DB:       h.DB,
		Logger:   zerolog.Nop(),
	}

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, upstream.disconnected)
	assert.True(t, auth.tornDown, "auth teardown must still run after upstream disconnect fails")
	assert.Contains(t, err.Error(), "disconnect failed")
	assert.Contains(t, err.Error(), "teardown failed")
}

func TestShutdown_Run_NilCollaboratorsAreSkippedSafely(t *testing.T) {
	h := newHarness(t)

	s := &Shutdown{
		Queue:  h.Queue,
		DB:     h.DB,
		Logger: zerolog.Nop(),
	}

	err := s.Run(context.Background())
	require.NoError(t, err)
}
