/*
Package ingest drives the fetch → persist-raw → normalize → dedupe →
advance-cursor pipeline a poll job triggers (spec.md §4.5), plus the three
ingest-time concerns original_source/tca/ingest/* restores beyond the
distilled spec: flood-wait cool-downs (floodwait.go), account-risk
escalation (accountrisk.go), and the recoverable-stage-error capture
helper every stage call is wrapped in (errorcapture.go).

Shaped after the teacher's worker-pool stage functions
(_examples/cuemby-warren/pkg/worker/worker.go): small, single-purpose
functions taking their storage collaborators as explicit parameters rather
than a god object, composed by Pipeline.Run per poll job.
*/
package ingest
