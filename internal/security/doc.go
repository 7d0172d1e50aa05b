/*
Package security implements per-row envelope encryption, generalized from
the teacher's cluster-wide AES-256-GCM SecretsManager
(_examples/cuemby-warren/pkg/security/secrets.go): instead of one shared
encryption key, a process-memory-only KEK wraps a random 32-byte DEK per
row, and the DEK encrypts the row's plaintext. RewrapDEK re-wraps a row's
DEK under a new KEK version without touching the row ciphertext, which is
the primitive internal/auth's key-rotation walk (Rotator) uses to migrate
accounts one at a time.

Bootstrap token generation (GenerateBootstrapToken, ComputeTokenDigest,
WriteBootstrapTokenFile) is grounded on
original_source/tests/auth/test_bootstrap_token.py: only the token's
SHA-256 digest is ever persisted, the plaintext is written once to an
owner-only (0600) output file, and a write failure must roll back any
digest already persisted so a crash never leaves an unrecoverable
digest-only state.

The teacher's certificate-authority and TLS certificate-rotation code
(pkg/security/ca.go, certs.go) has no home here: tca has no node-to-node
mTLS surface, so that code is dropped rather than adapted (see DESIGN.md).
*/
package security
