// Package ops implements tca's scheduled maintenance jobs: retention
// prune, nightly backup, and the graceful shutdown sequencer described in
// spec.md §4.6. Each job is a struct (Pruner, Backup, Shutdown) whose
// collaborators are fields the caller sets, with a Run method (no
// package-level state), in the same injection style internal/ingest's
// Pipeline uses. Pruner and Backup take an optional Now clock and fall
// back to time.Now in UTC.
package ops
