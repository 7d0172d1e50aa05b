package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/security"
	"github.com/cuemby/tca/internal/storage"
)

// Rotator walks every account in id order, re-wrapping its ciphertext
// columns' DEKs under a new KEK version. Grounded on
// original_source/tests/auth/test_key_rotation_resume.py: each account's
// rewrap and its progress advance commit in one transaction, so a crash
// between accounts resumes from last_rotated_account_id+1 with no account
// redone or skipped.
type Rotator struct {
	Accounts    *storage.AccountRepo
	KeyRotation *storage.KeyRotationRepo
	Logger      zerolog.Logger
	Now         func() time.Time
}

func (r *Rotator) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// RotationResult reports how many accounts this Run call advanced.
type RotationResult struct {
	AccountsRotated int
	Completed       bool
}

// Run begins (or resumes) a rotation targeting targetKeyVersion, re-
// wrapping every pending account's DEKs from oldKEK to newKEK. It returns
// once every account has rotated (Completed true) or ctx is cancelled.
func (r *Rotator) Run(ctx context.Context, oldKEK, newKEK *security.KEK, targetKeyVersion int) (RotationResult, error) {
	now := r.now()
	if err := r.KeyRotation.BeginRotation(ctx, targetKeyVersion, now); err != nil {
		return RotationResult{}, errs.Fatal(err, "begin key rotation")
	}

	var result RotationResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rotated, err := r.rotateNextAccount(ctx, oldKEK, newKEK, targetKeyVersion)
		if err != nil {
			return result, err
		}
		if !rotated {
			break
		}
		result.AccountsRotated++
	}

	completed, err := r.KeyRotation.CompleteIfFinished(ctx, r.now())
	if err != nil {
		return result, errs.Fatal(err, "complete key rotation")
	}
	result.Completed = completed
	return result, nil
}

// rotateNextAccount re-wraps exactly one pending account's ciphertext and
// advances rotation progress, both inside one writer-queue transaction. It
// returns false once no account is pending.
func (r *Rotator) rotateNextAccount(ctx context.Context, oldKEK, newKEK *security.KEK, targetKeyVersion int) (bool, error) {
	now := r.now()
	var rotated bool

	err := r.KeyRotation.Submit(ctx, func(tx *sql.Tx) error {
		state, err := r.KeyRotation.GetStateTx(tx)
		if err != nil {
			return err
		}

		nextID, err := r.KeyRotation.NextPendingAccountIDTx(tx, state.LastRotatedAccountID)
		if err != nil {
			return err
		}
		if nextID == nil {
			return nil
		}

		account, err := r.Accounts.GetTx(tx, *nextID)
		if err != nil {
			return err
		}

		newAPIHashCT, err := security.RewrapPacked(oldKEK, newKEK, account.APIHashCT)
		if err != nil {
			return errs.Fatal(err, "rewrap account %d api_hash_ct", account.ID)
		}

		// session is nullable (spec.md §3: "session (encrypted, nullable)")
		// until the account's first login, so there may be nothing to
		// rewrap yet; leave it as-is rather than treat an empty blob as a
		// malformed envelope.
		newSessionCT := account.SessionCT
		if len(account.SessionCT) > 0 {
			newSessionCT, err = security.RewrapPacked(oldKEK, newKEK, account.SessionCT)
			if err != nil {
				return errs.Fatal(err, "rewrap account %d session_ct", account.ID)
			}
		}

		if err := r.Accounts.RewrapCiphertextTx(tx, account.ID, newAPIHashCT, newSessionCT, targetKeyVersion, now); err != nil {
			return err
		}
		if err := r.KeyRotation.MarkAccountRotatedTx(tx, account.ID, now); err != nil {
			return err
		}

		rotated = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if rotated {
		r.Logger.Info().Msg("key rotation: account rewrapped")
	}
	return rotated, nil
}
