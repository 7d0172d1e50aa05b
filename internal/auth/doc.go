/*
Package auth implements spec.md §4.7's startup unlock gate, bootstrap
bearer token, and key-rotation walk.

	┌────────────────── LOCK / UNLOCK ──────────────────┐
	│  State starts Locked; interactive mode requires an │
	│  explicit UnlockInteractive call, auto-unlock       │
	│  mode derives the KEK from a mounted secret file at │
	│  startup. Anything that needs to decrypt row        │
	│  material calls State.KEK and gets a validation     │
	│  error until one of those has run.                  │
	└──────────────────────────────────────────────────────┘

Bootstrap token generation and the rotation walk are grounded on
original_source/tests/auth/test_bootstrap_token.py and
test_key_rotation_resume.py; envelope encryption and key derivation reuse
internal/security, generalized from
_examples/cuemby-warren/pkg/security/secrets.go.
*/
package auth
