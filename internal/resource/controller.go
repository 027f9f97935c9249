// Package resource governs what the runtime bridge admits: concurrent
// engine calls, ingest throughput and in-flight payload memory.
package resource

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values are permissive.
type Config struct {
	// MaxConcurrentCalls is the maximum number of engine calls in flight.
	// If 0, defaults to runtime.NumCPU().
	MaxConcurrentCalls int64

	// IngestLimitBytesPerSec is the maximum row ingestion throughput.
	// If 0, unlimited.
	IngestLimitBytesPerSec int64

	// MemoryLimitBytes is the hard limit for admitted payload bytes.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64
}

// Controller admits boundary work against the configured limits.
// A nil Controller admits everything.
type Controller struct {
	cfg Config

	callSem *semaphore.Weighted

	ingestLimiter *rate.Limiter // nil if unlimited

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = int64(runtime.NumCPU())
	}

	c := &Controller{
		cfg:     cfg,
		callSem: semaphore.NewWeighted(cfg.MaxConcurrentCalls),
	}

	if cfg.IngestLimitBytesPerSec > 0 {
		c.ingestLimiter = rate.NewLimiter(rate.Limit(cfg.IngestLimitBytesPerSec), int(cfg.IngestLimitBytesPerSec))
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	return c
}

// AcquireCall reserves an engine call slot. Blocks while all slots are busy.
func (c *Controller) AcquireCall(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.callSem.Acquire(ctx, 1)
}

// TryAcquireCall reserves an engine call slot without blocking.
func (c *Controller) TryAcquireCall() bool {
	if c == nil {
		return true
	}
	return c.callSem.TryAcquire(1)
}

// ReleaseCall releases an engine call slot.
func (c *Controller) ReleaseCall() {
	if c == nil {
		return
	}
	c.callSem.Release(1)
}

// AcquireIngest waits until the ingest limit allows the specified number
// of bytes.
func (c *Controller) AcquireIngest(ctx context.Context, bytes int) error {
	if c == nil || c.ingestLimiter == nil {
		return nil
	}
	return c.ingestLimiter.WaitN(ctx, bytes)
}

// AcquireMemory reserves payload memory. If a hard limit is configured and
// usage would exceed it, this blocks until memory is available or ctx is
// canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves payload memory without blocking.
// Returns false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved payload memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently admitted payload bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}
