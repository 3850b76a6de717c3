package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes caps memory held by block caches.
	MemoryLimitBytes int64

	// MaxConcurrentReads caps the number of block reads in flight.
	MaxConcurrentReads int64

	// ReadBytesPerSec caps blob read throughput.
	ReadBytesPerSec int64

	// WriteBytesPerSec caps segment write throughput during flush.
	WriteBytesPerSec int64
}

// Controller enforces a Config.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	readSem    *semaphore.Weighted
	readsTotal atomic.Int64
	readBytes  atomic.Int64

	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
	writeBytes   atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.MaxConcurrentReads > 0 {
		c.readSem = semaphore.NewWeighted(cfg.MaxConcurrentReads)
	}
	c.readLimiter = newLimiter(cfg.ReadBytesPerSec)
	c.writeLimiter = newLimiter(cfg.WriteBytesPerSec)
	return c
}

func newLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
}

// Config returns the limits the controller was created with.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireMemory reserves memory, blocking until it is available or ctx is done.
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

// TryAcquireMemory reserves memory without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireRead waits for a read slot and for the bandwidth of n bytes. The
// returned function releases the slot.
func (c *Controller) AcquireRead(ctx context.Context, n int) (release func(), err error) {
	if c == nil {
		return func() {}, nil
	}
	if c.readSem != nil {
		if err := c.readSem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	release = func() {
		if c.readSem != nil {
			c.readSem.Release(1)
		}
	}
	if err := wait(ctx, c.readLimiter, n); err != nil {
		release()
		return nil, err
	}
	c.readsTotal.Add(1)
	c.readBytes.Add(int64(n))
	return release, nil
}

// WaitWrite waits for the bandwidth of n written bytes.
func (c *Controller) WaitWrite(ctx context.Context, n int) error {
	if c == nil {
		return nil
	}
	return wait(ctx, c.writeLimiter, n)
}

// WrittenBytes returns the bytes written through NewWriter so far.
func (c *Controller) WrittenBytes() int64 {
	if c == nil {
		return 0
	}
	return c.writeBytes.Load()
}

// Reads returns the number and total size of reads admitted so far.
func (c *Controller) Reads() (count, bytes int64) {
	if c == nil {
		return 0, 0
	}
	return c.readsTotal.Load(), c.readBytes.Load()
}

// wait blocks for n tokens. Requests larger than the burst are split.
func wait(ctx context.Context, l *rate.Limiter, n int) error {
	if l == nil {
		return nil
	}
	burst := l.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := l.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
