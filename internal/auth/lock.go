package auth

import (
	"context"
	"sync"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/security"
)

// Status is the process-local unlock state named in spec.md §4.7.
type Status int

const (
	StatusLocked Status = iota
	StatusUnlocked
)

func (s Status) String() string {
	if s == StatusUnlocked {
		return "unlocked"
	}
	return "locked"
}

// State gates every function that decrypts row material behind an
// explicit unlock. It is process-memory only: the KEK it holds is never
// persisted and is cleared on Lock or process exit, matching
// original_source/tca/auth/unlock_modes.py's UnlockState.
type State struct {
	mu     sync.RWMutex
	status Status
	kek    *security.KEK
}

// NewState returns a State starting Locked, the default for both startup
// modes until their respective unlock step runs.
func NewState() *State {
	return &State{status: StatusLocked}
}

// Status reports the current lock status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Unlock installs kek and transitions to Unlocked. Called once by either
// startup path (UnlockInteractive or UnlockAutoUnlock) or by an operator's
// explicit unlock action.
func (s *State) Unlock(kek *security.KEK) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kek = kek
	s.status = StatusUnlocked
}

// Lock clears the held KEK and returns to Locked. Used on shutdown
// teardown (ops.Shutdown's Auth collaborator) and available as an
// operator action.
func (s *State) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kek = nil
	s.status = StatusLocked
}

// KEK returns the held KEK, or a validation error naming the lock gate if
// still Locked — the Go equivalent of
// unlock_modes.py's SensitiveOperationLockedError.
func (s *State) KEK() (*security.KEK, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusUnlocked {
		return nil, errs.Validation("sensitive operations are locked: run an unlock action first")
	}
	return s.kek, nil
}

// Teardown clears the held KEK, satisfying internal/ops.AuthTeardown: a
// process shutdown must not leave key material resident in memory any
// longer than the process itself.
func (s *State) Teardown(_ context.Context) error {
	s.Lock()
	return nil
}
