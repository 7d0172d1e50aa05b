package auth

import (
	"os"
	"strings"

	"github.com/cuemby/tca/internal/config"
	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/security"
)

// UnlockInteractive derives a KEK from an operator-supplied passphrase and
// unlocks state. This is the explicit unlock action spec.md §4.7 requires
// for interactive mode; it is never called automatically at startup.
func UnlockInteractive(state *State, passphrase string) error {
	if passphrase == "" {
		return errs.Validation("unlock passphrase must not be empty")
	}
	kek, err := security.NewKEK(security.DeriveKeyFromPassphrase(passphrase), 1)
	if err != nil {
		return errs.Fatal(err, "derive KEK from passphrase")
	}
	state.Unlock(kek)
	return nil
}

// UnlockAutoUnlock reads cfg.SecretFile and unlocks state automatically at
// startup. A missing, unreadable, or empty secret file is a startup error
// with actionable text, per spec.md §4.7 and
// original_source/tca/auth/unlock_modes.py's
// StartupUnlockModeError classmethods.
func UnlockAutoUnlock(state *State, cfg *config.Config) error {
	if cfg.SecretFile == "" {
		return errs.Fatal(nil, "startup unlock failed: TCA_MODE=%q requires TCA_SECRET_FILE to point at a mounted secret file", config.ModeAutoUnlock)
	}

	if _, err := os.Stat(cfg.SecretFile); err != nil {
		if os.IsNotExist(err) {
			return errs.Fatal(err, "startup unlock failed: configured auto-unlock secret file was not found at %q; ensure the file is mounted and TCA_SECRET_FILE is set", cfg.SecretFile)
		}
		return errs.Fatal(err, "startup unlock failed: unable to stat auto-unlock secret file %q", cfg.SecretFile)
	}

	data, err := os.ReadFile(cfg.SecretFile)
	if err != nil {
		return errs.Fatal(err, "startup unlock failed: unable to read auto-unlock secret file %q; ensure the file is mounted and readable by tca", cfg.SecretFile)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return errs.Fatal(nil, "startup unlock failed: auto-unlock secret file %q is empty; write the secret to the file or switch TCA_MODE to %q", cfg.SecretFile, config.ModeInteractive)
	}

	kek, err := security.NewKEK(security.DeriveKeyFromPassphrase(secret), 1)
	if err != nil {
		return errs.Fatal(err, "derive KEK from auto-unlock secret file")
	}
	state.Unlock(kek)
	return nil
}

// Startup runs the unlock step appropriate to cfg.Mode. Interactive mode
// leaves state Locked, awaiting an explicit UnlockInteractive call; auto-
// unlock mode unlocks immediately or fails startup outright.
func Startup(state *State, cfg *config.Config) error {
	switch cfg.Mode {
	case config.ModeAutoUnlock:
		return UnlockAutoUnlock(state, cfg)
	case config.ModeInteractive:
		return nil
	default:
		return errs.Validation("unsupported unlock mode %q", cfg.Mode)
	}
}
