package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/cuemby/tca/internal/metrics"
)

// writeJob is one unit of serialized work: a closure that receives the
// single write transaction and a channel the consumer uses to report the
// closure's own error back to the submitter, mirroring the future/response
// shape of the teacher's Manager.Apply
// (_examples/cuemby-warren/pkg/manager/manager.go), generalized from "marshal
// a Command through raft.Apply" to "run a closure inside one sql.Tx".
type writeJob struct {
	fn   func(*sql.Tx) error
	done chan error
}

// WriterQueue is the single-consumer FIFO all writes to the SQLite file
// funnel through. Every entity repository's mutating methods call Submit
// instead of opening their own transaction, so SQLite's single-writer rule
// is never contended and every commit is strictly ordered.
type WriterQueue struct {
	db       *DB
	jobs     chan writeJob
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewWriterQueue creates a WriterQueue bound to db's write connection.
// capacity bounds how many pending closures may be queued before Submit
// blocks; callers should size it to the expected burst (one poll job's
// worth of writes is typical).
func NewWriterQueue(db *DB, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &WriterQueue{
		db:     db,
		jobs:   make(chan writeJob, capacity),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the consumer goroutine.
func (q *WriterQueue) Start() {
	go q.run()
}

// Stop signals the consumer to drain remaining jobs and exit, then blocks
// until it has. Submit must not be called again after Stop returns. Safe to
// call more than once (e.g. an explicit ops.Shutdown.Run followed by a
// deferred test-cleanup Stop); only the first call has any effect.
func (q *WriterQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		<-q.doneCh
	})
}

// Submit runs fn inside a single BEGIN IMMEDIATE transaction on the write
// connection, serialized against every other Submit call, and returns fn's
// error (or the commit error, whichever is non-nil). ctx cancellation makes
// Submit return ctx.Err() while it waits to enqueue or waits for the result;
// a closure already enqueued is not cancelled and still runs to its own
// commit or rollback, because a half-applied transaction cannot be
// cancelled safely.
func (q *WriterQueue) Submit(ctx context.Context, fn func(*sql.Tx) error) error {
	job := writeJob{fn: fn, done: make(chan error, 1)}

	select {
	case q.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopCh:
		return fmt.Errorf("writer queue stopped")
	}

	metrics.WriterQueueDepth.Set(float64(len(q.jobs)))

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriterQueue) run() {
	defer close(q.doneCh)

	for {
		select {
		case job := <-q.jobs:
			q.execute(job)
			metrics.WriterQueueDepth.Set(float64(len(q.jobs)))
		case <-q.stopCh:
			q.drain()
			return
		}
	}
}

// drain runs any jobs still buffered in the channel after Stop is called,
// so a caller that submitted just before shutdown still gets a result
// instead of a stuck Submit.
func (q *WriterQueue) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.execute(job)
		default:
			return
		}
	}
}

func (q *WriterQueue) execute(job writeJob) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WriterClosureDuration)

	tx, err := q.db.WriteConn.Begin()
	if err != nil {
		job.done <- fmt.Errorf("begin write transaction: %w", err)
		return
	}

	if err := job.fn(tx); err != nil {
		_ = tx.Rollback()
		job.done <- err
		return
	}

	if err := tx.Commit(); err != nil {
		job.done <- fmt.Errorf("commit write transaction: %w", err)
		return
	}

	job.done <- nil
}
