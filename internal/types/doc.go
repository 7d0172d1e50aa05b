/*
Package types defines the data model tca's other packages share: accounts,
channels, cursors, items, clusters, decisions, settings, notifications, and
the handful of transient rows (auth sessions, key rotation) that exist only
to make a crash-restart safe.

# Entity families

Ingest surface: Account -> Channel -> ChannelState (cursor) -> RawMessage ->
Item. Dedupe surface: Item -> Member -> Cluster, with Decision as the
append-only trace of every strategy attempt. Ops surface: Setting,
Notification, IngestError, KeyRotationState. Auth surface: AuthSessionState,
AccountPause.

# Conventions

IDs are int64, assigned by the store (AUTOINCREMENT rowids), never
generated client-side — ordering by ID is how list endpoints get a stable,
deterministic, insertion-order default (see spec.md §4.2). Optional
one-to-one relationships and nullable columns are *T, never zero-value
sentinels: a nil *time.Time means "never", not "the zero time".

Ciphertext fields (Account.APIHashCT, Account.SessionCT,
AuthSessionState.UpstreamSessionCT) are opaque envelope-encrypted blobs
produced by internal/security; nothing outside that package ever sees the
plaintext they wrap.
*/
package types
