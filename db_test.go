package geokv_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/geokv"
	"github.com/hupe1980/geokv/feature"
	"github.com/hupe1980/geokv/filter"
	"github.com/hupe1980/geokv/index"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/scan"
)

type fixture struct {
	db     *geokv.DB[*feature.Feature]
	idx    *index.Model
	roads  *feature.Adapter
	rivers *feature.Adapter
}

func spatialIndex(t *testing.T) *index.Model {
	t.Helper()
	idx, err := index.Spatial("spatial", 16)
	require.NoError(t, err)
	return idx
}

func roadsAdapter(t *testing.T, idx *index.Model) *feature.Adapter {
	t.Helper()
	a, err := feature.NewAdapter("roads", idx,
		feature.Attribute{Name: "name", Type: feature.String},
		feature.Attribute{Name: "lanes", Type: feature.Int64},
	)
	require.NoError(t, err)
	return a
}

func riversAdapter(t *testing.T, idx *index.Model) *feature.Adapter {
	t.Helper()
	a, err := feature.NewAdapter("rivers", idx,
		feature.Attribute{Name: "name", Type: feature.String},
		feature.Attribute{Name: "length", Type: feature.Float64},
	)
	require.NoError(t, err)
	return a
}

func newFixture(t *testing.T, opts ...geokv.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	idx := spatialIndex(t)
	db, err := geokv.Open[*feature.Feature](ctx, idx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, idx: idx, roads: roadsAdapter(t, idx), rivers: riversAdapter(t, idx)}
	require.NoError(t, db.RegisterAdapter(ctx, f.roads))
	require.NoError(t, db.RegisterAdapter(ctx, f.rivers))
	return f
}

func road(id string, x, y float64, name string, lanes int64) *feature.Feature {
	return &feature.Feature{
		ID:         id,
		Geometry:   feature.Point{x, y},
		Attributes: map[model.FieldID]any{"name": name, "lanes": lanes},
	}
}

func river(id string, x, y float64, name string, length float64) *feature.Feature {
	return &feature.Feature{
		ID:         id,
		Geometry:   feature.Point{x, y},
		Attributes: map[model.FieldID]any{"name": name, "length": length},
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.db.Write(ctx, "roads",
		road("r1", 13.40, 52.52, "Unter den Linden", 4),
		road("r2", 2.35, 48.85, "Rue de Rivoli", 3),
		road("r3", -73.98, 40.75, "Broadway", 2),
	))
	require.NoError(t, f.db.Write(ctx, "rivers",
		river("v1", 13.38, 52.51, "Spree", 400),
		river("v2", 2.30, 48.86, "Seine", 777),
	))
}

func ids(fs []*feature.Feature) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	slices.Sort(out)
	return out
}

func TestDB_WriteQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	// Unflushed rows are visible.
	got, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3", "v1", "v2"}, ids(got))

	require.NoError(t, f.db.Flush(ctx))
	require.Len(t, f.db.Store().Segments(), 1)

	got, err = f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{Adapters: []model.AdapterID{"roads"}})
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2", "r3"}, ids(got))
	for _, ft := range got {
		if ft.ID == "r1" {
			assert.Equal(t, feature.Point{13.40, 52.52}, ft.Geometry)
			assert.Equal(t, "Unter den Linden", ft.Attributes["name"])
			assert.Equal(t, int64(4), ft.Attributes["lanes"])
		}
	}
}

func TestDB_Overwrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.db.Write(ctx, "roads", road("r1", 1, 1, "old", 1)))
	require.NoError(t, f.db.Flush(ctx))
	require.NoError(t, f.db.Write(ctx, "roads", road("r1", 1, 1, "new", 2)))

	got, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Attributes["name"])
}

func TestDB_Range(t *testing.T) {
	ctx := context.Background()

	for _, partitions := range []int{0, 4} {
		idx := spatialIndex(t)
		idx.Partitions = partitions
		db, err := geokv.Open[*feature.Feature](ctx, idx)
		require.NoError(t, err)
		defer db.Close()
		require.NoError(t, db.RegisterAdapter(ctx, roadsAdapter(t, idx)))
		require.NoError(t, db.RegisterAdapter(ctx, riversAdapter(t, idx)))
		f := &fixture{db: db, idx: idx}
		f.seed(t)
		require.NoError(t, db.Flush(ctx))

		europe := &geokv.Box{Min: []float64{0, 45}, Max: []float64{20, 55}}
		got, err := db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{Range: europe})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2", "v1", "v2"}, ids(got), "partitions=%d", partitions)

		got, err = db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
			Range:     &geokv.Box{Min: []float64{13, 52}, Max: []float64{14, 53}},
			MaxRanges: 4,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "v1"}, ids(got))

		got, err = db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
			Range: &geokv.Box{Min: []float64{100, 0}, Max: []float64{110, 10}},
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestDB_Projection(t *testing.T) {
	for _, pushDown := range []bool{false, true} {
		t.Run(map[bool]string{false: "client", true: "push-down"}[pushDown], func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.seed(t)
			require.NoError(t, f.db.Flush(ctx))

			got, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
				AdapterID: "roads",
				Fields:    []model.FieldID{"name"},
				PushDown:  pushDown,
			})
			require.NoError(t, err)
			require.Equal(t, []string{"r1", "r2", "r3", "v1", "v2"}, ids(got))
			for _, ft := range got {
				// Dimension fields are always retained.
				assert.Len(t, ft.Geometry, 2)
				assert.Contains(t, ft.Attributes, model.FieldID("name"))
				switch ft.ID[0] {
				case 'r':
					assert.NotContains(t, ft.Attributes, model.FieldID("lanes"))
				case 'v':
					// Other adapters pass through unprojected.
					assert.Contains(t, ft.Attributes, model.FieldID("length"))
				}
			}

			got, err = f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
				AdapterID:      "roads",
				Fields:         []model.FieldID{"lanes"},
				PushDown:       pushDown,
				DropMismatched: true,
			})
			require.NoError(t, err)
			require.Equal(t, []string{"r1", "r2", "r3"}, ids(got))
			assert.NotContains(t, got[0].Attributes, model.FieldID("name"))
		})
	}
}

func TestDB_FilterAfterProjection(t *testing.T) {
	for _, pushDown := range []bool{false, true} {
		t.Run(map[bool]string{false: "client", true: "push-down"}[pushDown], func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.seed(t)
			require.NoError(t, f.db.Flush(ctx))

			broadway := filter.Equals{Field: "name", Value: []byte("Broadway")}

			// name is projected away, so the filter cannot match it.
			got, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
				AdapterID: "roads",
				Fields:    []model.FieldID{"lanes"},
				PushDown:  pushDown,
				Filter:    broadway,
			})
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{
				AdapterID: "roads",
				Fields:    []model.FieldID{"name"},
				PushDown:  pushDown,
				Filter:    broadway,
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"r3"}, ids(got))
		})
	}
}

func TestDB_LimitAndCallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	var seen []string
	var stats scan.Stats
	q, err := f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{
		Limit: 2,
		Stats: &stats,
		Callback: func(ft *feature.Feature, row model.Row) {
			seen = append(seen, ft.ID)
		},
	})
	require.NoError(t, err)
	got, err := q.Collect()
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, seen, 2)
	assert.Equal(t, scan.Closed, q.State())
	assert.Equal(t, int64(2), stats.Snapshot().Emitted)
}

func TestDB_Subsample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.db.Write(ctx, "roads",
		road("ne1", 10, 10, "a", 1),
		road("ne2", 20, 30, "b", 1),
		road("ne3", 120, 60, "c", 1),
		road("sw1", -10, -10, "d", 1),
		road("sw2", -100, -45, "e", 1),
	))

	got, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{MaxResolution: []float64{180, 90}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{MaxResolution: []float64{0, 0}})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestDB_InvalidQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{Fields: []model.FieldID{"name"}})
	assert.ErrorIs(t, err, geokv.ErrInvalidQuery)

	_, err = f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{DropMismatched: true})
	assert.ErrorIs(t, err, geokv.ErrInvalidQuery)

	_, err = f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{AdapterID: "lakes", Fields: []model.FieldID{"name"}})
	assert.ErrorIs(t, err, geokv.ErrUnknownAdapter)

	_, err = f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{Range: &geokv.Box{Min: []float64{5, 5}, Max: []float64{1, 1}}})
	assert.ErrorIs(t, err, geokv.ErrInvalidQuery)

	_, err = f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{MaxResolution: []float64{1}})
	assert.ErrorIs(t, err, geokv.ErrInvalidQuery)
}

func TestDB_WriteErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.db.Write(ctx, "lakes", road("l1", 0, 0, "x", 1))
	assert.ErrorIs(t, err, geokv.ErrUnknownAdapter)

	err = f.db.Write(ctx, "roads", road("far", 500, 0, "x", 1))
	assert.ErrorIs(t, err, index.ErrOutOfBounds)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = f.db.Write(canceled, "roads", road("r1", 0, 0, "x", 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDB_UnknownAdapterRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f := newFixture(t, geokv.WithLocal(dir))
	f.seed(t)
	require.NoError(t, f.db.Flush(ctx))
	require.NoError(t, f.db.Close())

	// Reopen knowing only roads.
	db, err := geokv.Open[*feature.Feature](ctx, nil, geokv.WithLocal(dir))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RegisterAdapter(ctx, roadsAdapter(t, db.Index())))

	var stats scan.Stats
	got, err := db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{Stats: &stats})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(got))
	assert.Equal(t, int64(2), stats.Snapshot().Unknown)

	_, err = db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{FailUnknown: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPartialRead)
	assert.ErrorIs(t, err, model.ErrUnknownAdapter)

	layouts, err := db.Layouts()
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, model.AdapterID("rivers"), layouts[0].ID())
	assert.Equal(t, []model.AdapterID{"roads"}, db.Adapters())
}

func TestDB_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := geokv.Open[*feature.Feature](ctx, nil, geokv.WithLocal(dir))
	assert.ErrorIs(t, err, geokv.ErrNoIndex)

	f := newFixture(t, geokv.WithLocal(dir), geokv.WithCompression(0))
	f.seed(t)
	require.NoError(t, f.db.Flush(ctx))
	require.NoError(t, f.db.Close())

	other, err := index.Spatial("other", 8)
	require.NoError(t, err)
	_, err = geokv.Open[*feature.Feature](ctx, other, geokv.WithLocal(dir))
	var mismatch *geokv.ErrIndexMismatch
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "spatial", mismatch.Stored)

	db, err := geokv.Open[*feature.Feature](ctx, spatialIndex(t), geokv.WithLocal(dir))
	require.NoError(t, err)
	defer db.Close()

	// A different layout for a stored adapter is rejected.
	changed, err := feature.NewAdapter("roads", db.Index(), feature.Attribute{Name: "lanes", Type: feature.Int64})
	require.NoError(t, err)
	assert.Error(t, db.RegisterAdapter(ctx, changed))

	require.NoError(t, db.RegisterAdapter(ctx, roadsAdapter(t, db.Index())))
	require.NoError(t, db.RegisterAdapter(ctx, riversAdapter(t, db.Index())))
	got, err := db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestDB_Compact(t *testing.T) {
	ctx := context.Background()
	metrics := &geokv.BasicMetricsCollector{}
	f := newFixture(t, geokv.WithMetricsCollector(metrics))

	for i := range 3 {
		require.NoError(t, f.db.Write(ctx, "roads", road("r1", 1, 1, "v", int64(i))))
		require.NoError(t, f.db.Flush(ctx))
	}
	require.Len(t, f.db.Store().Segments(), 3)
	require.NoError(t, f.db.Compact(ctx))
	require.Len(t, f.db.Store().Segments(), 1)

	got, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Attributes["lanes"])

	stats := metrics.GetStats()
	assert.Equal(t, int64(3), stats.WriteCount)
	assert.Equal(t, int64(3), stats.FlushCount)
	assert.Equal(t, int64(1), stats.CompactCount)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryEmitted)
}

func TestDB_AutoFlush(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, geokv.WithFlushThreshold(1))

	require.NoError(t, f.db.Write(ctx, "roads", road("r1", 1, 1, "v", 1)))
	assert.Len(t, f.db.Store().Segments(), 1)
	assert.Zero(t, f.db.Store().MemtableSize())
}

func TestDB_BlockCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, geokv.WithLocal(t.TempDir()), geokv.WithBlockCache(1<<20))
	f.seed(t)
	require.NoError(t, f.db.Flush(ctx))

	_, err := f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	hits, misses := f.db.CacheStats()
	require.Positive(t, hits+misses)

	_, err = f.db.QueryAll(ctx, geokv.QueryOptions[*feature.Feature]{})
	require.NoError(t, err)
	hits2, misses2 := f.db.CacheStats()
	assert.Greater(t, hits2, hits)
	assert.Equal(t, misses, misses2)
}

func TestDB_Closed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.db.Close())
	require.NoError(t, f.db.Close())

	assert.ErrorIs(t, f.db.Write(ctx, "roads", road("r1", 0, 0, "x", 1)), geokv.ErrClosed)
	assert.ErrorIs(t, f.db.Flush(ctx), geokv.ErrClosed)
	_, err := f.db.Query(ctx, geokv.QueryOptions[*feature.Feature]{})
	assert.ErrorIs(t, err, geokv.ErrClosed)
}
