/*
Package events provides an in-process pub/sub Broker for operator-visible
Notification rows, generalized from the teacher's cluster-wide event bus
(_examples/cuemby-warren/pkg/events/events.go): same buffered fan-out,
non-blocking publish, explicit Subscribe/Unsubscribe lifecycle, now typed
over *types.Notification instead of a generic Event.

NATSMirror subscribes to a Broker and republishes every notification to
NATS (github.com/nats-io/nats.go) as a best-effort mirror — grounded on
_examples/adred-codev-ws_poc/go-server's pkg/nats/client.go connection
handling. It is never the system of record: a notification only reaches
the broker after it is durably persisted through the writer queue, so a
NATS outage never blocks ingest or dedupe.
*/
package events
