package geokv_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/geokv"
	"github.com/hupe1980/geokv/feature"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/scan"
)

func populate(t *testing.T, db *geokv.DB[*feature.Feature], n int) {
	t.Helper()
	ctx := context.Background()
	for i := range n {
		x := float64(i%360) - 179.5
		y := float64(i%180) - 89.5
		require.NoError(t, db.Write(ctx, "roads", road(fmt.Sprintf("r%04d", i), x, y, "road", int64(i%6))))
	}
}

// TestNoGoroutineLeaks verifies that segment opens, cache fills and scans
// leave no goroutines behind once the database is closed.
func TestNoGoroutineLeaks(t *testing.T) {
	tests := []struct {
		name     string
		opts     func(t *testing.T) []geokv.Option
		maxLeaks int
	}{
		{
			name:     "memory",
			opts:     func(*testing.T) []geokv.Option { return nil },
			maxLeaks: 2,
		},
		{
			name: "local with block cache",
			opts: func(t *testing.T) []geokv.Option {
				return []geokv.Option{geokv.WithLocal(t.TempDir()), geokv.WithBlockCache(1 << 20)}
			},
			maxLeaks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime.GC()
			time.Sleep(50 * time.Millisecond)
			initial := runtime.NumGoroutine()

			ctx := context.Background()
			idx := spatialIndex(t)
			db, err := geokv.Open[*feature.Feature](ctx, idx, tt.opts(t)...)
			require.NoError(t, err)
			require.NoError(t, db.RegisterAdapter(ctx, roadsAdapter(t, idx)))

			for range 3 {
				populate(t, db, 100)
				require.NoError(t, db.Flush(ctx))
			}
			require.NoError(t, db.Compact(ctx))

			got, err := db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
				Range: &geokv.Box{Min: []float64{-180, -90}, Max: []float64{0, 0}},
			})
			require.NoError(t, err)
			require.NotEmpty(t, got)

			// An abandoned query still holds segment references.
			q, err := db.Query(ctx, geokv.QueryOptions[*feature.Feature]{})
			require.NoError(t, err)
			_, err = q.Next()
			require.NoError(t, err)
			require.NoError(t, q.Close())

			require.NoError(t, db.Close())

			deadline := time.Now().Add(2 * time.Second)
			var leaked int
			for {
				runtime.GC()
				time.Sleep(50 * time.Millisecond)
				leaked = runtime.NumGoroutine() - initial
				if leaked <= tt.maxLeaks || time.Now().After(deadline) {
					break
				}
			}
			if leaked > tt.maxLeaks {
				buf := make([]byte, 1<<20)
				n := runtime.Stack(buf, true)
				t.Fatalf("goroutine leak: %d extra goroutines\n%s", leaked, buf[:n])
			}
		})
	}
}

func TestQueryLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	populate(t, f.db, 10)
	require.NoError(t, f.db.Flush(ctx))

	q, err := f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	assert.Equal(t, scan.Created, q.State())

	_, err = q.Next()
	require.NoError(t, err)
	assert.Equal(t, scan.Open, q.State())

	require.NoError(t, q.Close())
	assert.Equal(t, scan.Closed, q.State())
	require.NoError(t, q.Close())

	_, err = q.Next()
	assert.ErrorIs(t, err, model.ErrIllegalState)

	// Exhausted queries report EOF until closed.
	q, err = f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{Limit: 1})
	require.NoError(t, err)
	_, err = q.Next()
	require.NoError(t, err)
	assert.Equal(t, scan.Exhausted, q.State())
	_, err = q.Next()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, q.Close())
}

func TestQueryOutlivesDB(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	populate(t, f.db, 20)
	require.NoError(t, f.db.Flush(ctx))

	q, err := f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	require.NoError(t, f.db.Close())

	got, err := q.Collect()
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

// TestCloseIdempotent verifies that calling Close() multiple times is safe.
func TestCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := geokv.Open[*feature.Feature](ctx, spatialIndex(t), geokv.WithLocal(t.TempDir()))
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.NoError(t, db.Close())
	assert.NoError(t, db.Close())
}

// TestCloseWithActiveOperations verifies graceful shutdown during writes and
// queries.
func TestCloseWithActiveOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, geokv.WithFlushThreshold(4<<10))

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 100 {
			err := f.db.Write(ctx, "roads", road(fmt.Sprintf("w%03d", i), 1, 1, "w", 1))
			errs <- err
			time.Sleep(time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			_, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{})
			errs <- err
			time.Sleep(time.Millisecond)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, f.db.Close())
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, geokv.ErrClosed) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
