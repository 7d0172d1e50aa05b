/*
Package storage is tca's embedded durable store: SQLite via
github.com/mattn/go-sqlite3, grounded on _examples/estuary-flow's
catalog-loading connector (the pack's only other sql.Open("sqlite3", ...)
user). A read pool (db.go) serves concurrent queries; a single-connection
write engine is touched directly only by schema migrations (migrate.go) —
every other mutation goes through WriterQueue (queue.go), a single-consumer closures-over-channel FIFO shaped
like the teacher's pkg/manager.Manager.Apply (metrics timer, one point of
serialization, future/response-style error propagation), generalized from
"marshal a Command through raft.Apply" to "run a closure against one
*sql.Tx".

One file per entity family holds that entity's repository, following the
teacher's pkg/storage.Store method shape (Get/List/Create/...) plus
entity-specific finders. sqliteerr.go centralizes SQLite extended-error-code
remapping to internal/errs so no call site parses driver message text.
snapshot.go composes repositories into internal/metrics.Snapshot without
metrics importing this package, the same narrow-interface shape
internal/scheduler uses for its own storage-free collaborators.
*/
package storage
