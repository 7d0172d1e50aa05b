package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuemby/tca/internal/errs"
	"github.com/cuemby/tca/internal/security"
	"github.com/cuemby/tca/internal/storage"
)

// bootstrapTokenDigestKey is the settings row written once on first boot,
// per spec.md §4.7.
const bootstrapTokenDigestKey = "auth.bootstrap_bearer_token_digest"

// EnsureBootstrapToken generates the first-boot bearer token exactly once.
// If the digest setting already exists, this is a no-op: subsequent boots
// must not rotate the token (spec.md §4.7). On a fresh database, it
// persists the digest first, then writes the plaintext to outputPath; if
// that file write fails, the digest row is rolled back so there is never a
// digest with no recoverable plaintext, matching
// original_source/tests/auth/test_bootstrap_token.py's
// test_bootstrap_digest_is_rolled_back_when_output_write_fails.
func EnsureBootstrapToken(ctx context.Context, settings *storage.SettingRepo, outputPath string, now time.Time) error {
	_, err := settings.Get(ctx, bootstrapTokenDigestKey)
	if err == nil {
		return nil
	}
	if !errs.Is(err, errs.KindNotFound) {
		return err
	}

	token, err := security.GenerateBootstrapToken()
	if err != nil {
		return errs.Fatal(err, "generate bootstrap token")
	}
	digest := security.ComputeTokenDigest(token)

	value, err := json.Marshal(digest)
	if err != nil {
		return errs.Fatal(err, "encode bootstrap token digest")
	}
	if err := settings.Set(ctx, bootstrapTokenDigestKey, value, now); err != nil {
		return errs.Fatal(err, "persist bootstrap token digest")
	}

	if err := security.WriteBootstrapTokenFile(outputPath, token); err != nil {
		if rollbackErr := settings.Delete(ctx, bootstrapTokenDigestKey); rollbackErr != nil {
			return errs.Fatal(rollbackErr, "bootstrap token file write failed (%v) and digest rollback also failed", err)
		}
		return errs.Fatal(err, "write bootstrap token output file")
	}

	return nil
}
