package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/security"
)

func TestState_StartsLocked(t *testing.T) {
	s := NewState()
	assert.Equal(t, StatusLocked, s.Status())

	_, err := s.KEK()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestState_UnlockThenLock(t *testing.T) {
	s := NewState()
	kek, err := security.GenerateKEK(1)
	require.NoError(t, err)

	s.Unlock(kek)
	assert.Equal(t, StatusUnlocked, s.Status())
	got, err := s.KEK()
	require.NoError(t, err)
	assert.Same(t, kek, got)

	s.Lock()
	assert.Equal(t, StatusLocked, s.Status())
	_, err = s.KEK()
	assert.Error(t, err)
}
