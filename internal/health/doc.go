/*
Package health defines a small Checker interface (Check, Type) plus a
Status that tracks consecutive successes/failures against a Retries
threshold before flipping healthy/unhealthy — the same debounce shape the
teacher used for container probes, now pointed at tca's own dependencies:
the store (StoreChecker), the writer queue (WriterQueueChecker), and the
upstream Telegram client (UpstreamChecker). None of these run automatically;
cmd/tca runs them on each request to its own /healthz endpoint.
*/
package health
