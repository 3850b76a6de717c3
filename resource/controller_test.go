package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 50))
	require.NoError(t, c.AcquireMemory(context.Background(), 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(ctx, 20), context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())
	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Reads(t *testing.T) {
	c := NewController(Config{MaxConcurrentReads: 1})

	release, err := c.AcquireRead(context.Background(), 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.AcquireRead(ctx, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release, err = c.AcquireRead(context.Background(), 5)
	require.NoError(t, err)
	release()

	count, n := c.Reads()
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(15), n)
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	release, err := c.AcquireRead(context.Background(), 1<<20)
	require.NoError(t, err)
	release()
	require.NoError(t, c.WaitWrite(context.Background(), 1<<20))
	assert.True(t, c.TryAcquireMemory(1))
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, Config{}, c.Config())
}

func TestController_LargeWriteIsSplit(t *testing.T) {
	// The burst equals the rate, so a request of twice the burst must still
	// be admitted instead of failing with an exceeded-burst error.
	c := NewController(Config{WriteBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, c)
	n, err := w.Write(make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.Equal(t, int64(64), c.WrittenBytes())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitWrite(ctx, 1<<20+10))
}

func TestNewWriter_NilController(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, nil)
	assert.Same(t, &buf, w)
	assert.Zero(t, (*Controller)(nil).WrittenBytes())
}

func TestNewWriter_Canceled(t *testing.T) {
	c := NewController(Config{WriteBytesPerSec: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := NewWriter(ctx, &buf, c).Write(make([]byte, 16))
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
	assert.Zero(t, c.WrittenBytes())
}
