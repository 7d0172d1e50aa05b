package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
)

// ownerOnlyFileMode matches the original implementation's 0600 requirement
// for the bootstrap token output file (original_source/tests/auth/
// test_bootstrap_token.py: test_bootstrap_token_output_file_is_owner_only).
const ownerOnlyFileMode = 0o600

// GenerateBootstrapToken returns a new random URL-safe bearer token. Only
// its digest (ComputeTokenDigest) is ever persisted to the settings table;
// the plaintext value is written once to the operator-facing output file.
func GenerateBootstrapToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate bootstrap token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ComputeTokenDigest returns the SHA-256 hex digest of a bearer token, the
// only form of the token that is ever written to the settings table.
func ComputeTokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// WriteBootstrapTokenFile writes the plaintext token to path, terminated
// by a newline, with owner-only permissions. Callers must persist the
// token digest to storage before calling this, and must roll that digest
// back if this write fails — per original_source's
// test_bootstrap_digest_is_rolled_back_when_output_write_fails, a crash
// between the two steps must never leave a digest with no recoverable
// plaintext.
func WriteBootstrapTokenFile(path, token string) error {
	data := []byte(token + "\n")
	if err := os.WriteFile(path, data, ownerOnlyFileMode); err != nil {
		return fmt.Errorf("write bootstrap token file: %w", err)
	}
	return os.Chmod(path, ownerOnlyFileMode)
}
