package health

import (
	"context"
	"database/sql"
	"time"
)

// StoreChecker pings the read pool's underlying *sql.DB.
type StoreChecker struct {
	DB *sql.DB
}

func (c *StoreChecker) Type() CheckType { return CheckTypeStore }

func (c *StoreChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.DB.PingContext(ctx)
	res := Result{CheckedAt: start, Duration: time.Since(start)}
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.Healthy = true
	res.Message = "ok"
	return res
}

// WriterQueueChecker submits a no-op closure and waits for it to run,
// proving the single-consumer loop is still draining.
type WriterQueueChecker struct {
	Submit func(ctx context.Context, op func() error) error
}

func (c *WriterQueueChecker) Type() CheckType { return CheckTypeWriterQueue }

func (c *WriterQueueChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.Submit(ctx, func() error { return nil })
	res := Result{CheckedAt: start, Duration: time.Since(start)}
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.Healthy = true
	res.Message = "ok"
	return res
}

// UpstreamChecker reports whether the upstream Telegram client is
// currently connected. IsConnected matches the minimal upstream client
// contract from spec.md §6.
type UpstreamChecker struct {
	IsConnected func() bool
}

func (c *UpstreamChecker) Type() CheckType { return CheckTypeUpstream }

func (c *UpstreamChecker) Check(ctx context.Context) Result {
	start := time.Now()
	res := Result{CheckedAt: start, Duration: time.Since(start)}
	if c.IsConnected() {
		res.Healthy = true
		res.Message = "connected"
	} else {
		res.Message = "disconnected"
	}
	return res
}
