package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/config"
)

func TestUnlockInteractive_RejectsEmptyPassphrase(t *testing.T) {
	s := NewState()
	err := UnlockInteractive(s, "")
	require.Error(t, err)
	assert.Equal(t, StatusLocked, s.Status())
}

func TestUnlockInteractive_UnlocksWithNonEmptyPassphrase(t *testing.T) {
	s := NewState()
	require.NoError(t, UnlockInteractive(s, "correct horse battery staple"))
	assert.Equal(t, StatusUnlocked, s.Status())
}

func TestUnlockAutoUnlock_MissingConfiguredPath(t *testing.T) {
	s := NewState()
	cfg := &config.Config{Mode: config.ModeAutoUnlock, SecretFile: ""}
	err := UnlockAutoUnlock(s, cfg)
	require.Error(t, err)
	assert.Equal(t, StatusLocked, s.Status())
}

func TestUnlockAutoUnlock_FileDoesNotExist(t *testing.T) {
	s := NewState()
	cfg := &config.Config{Mode: config.ModeAutoUnlock, SecretFile: filepath.Join(t.TempDir(), "missing")}
	err := UnlockAutoUnlock(s, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not found")
}

func TestUnlockAutoUnlock_EmptyFile(t *testing.T) {
	s := NewState()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o600))

	cfg := &config.Config{Mode: config.ModeAutoUnlock, SecretFile: path}
	err := UnlockAutoUnlock(s, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestUnlockAutoUnlock_UnlocksFromFileContents(t *testing.T) {
	s := NewState()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("a-real-secret\n"), 0o600))

	cfg := &config.Config{Mode: config.ModeAutoUnlock, SecretFile: path}
	require.NoError(t, UnlockAutoUnlock(s, cfg))
	assert.Equal(t, StatusUnlocked, s.Status())
}

func TestStartup_InteractiveModeLeavesLocked(t *testing.T) {
	s := NewState()
	cfg := &config.Config{Mode: config.ModeInteractive}
	require.NoError(t, Startup(s, cfg))
	assert.Equal(t, StatusLocked, s.Status())
}

func TestStartup_AutoUnlockModeUnlocksImmediately(t *testing.T) {
	s := NewState()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("a-real-secret\n"), 0o600))

	cfg := &config.Config{Mode: config.ModeAutoUnlock, SecretFile: path}
	require.NoError(t, Startup(s, cfg))
	assert.Equal(t, StatusUnlocked, s.Status())
}
