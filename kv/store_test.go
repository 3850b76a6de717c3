package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/geokv/blobstore"
	"github.com/hupe1980/geokv/model"
)

func testRow(p byte, sortKey string, adapter model.AdapterID, value string) model.Row {
	return model.Row{
		Key:   model.Key{Partition: []byte{p}, SortKey: []byte(sortKey), AdapterID: adapter, Bitmask: []byte{0x01}},
		Value: []byte(value),
	}
}

func scanAll(t *testing.T, s *Store, rng Range, opts ...ScanOption) []model.Row {
	t.Helper()
	r, err := s.Scan(context.Background(), rng, opts...)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()

	var rows []model.Row
	for r.Next() {
		rows = append(rows, r.Row())
	}
	require.NoError(t, r.Err())
	return rows
}

func values(rows []model.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r.Value)
	}
	return out
}

func openStore(t *testing.T, blobs blobstore.BlobStore, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), blobs, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutScan(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())

	require.NoError(t, s.Put(testRow(0, "b", "a", "b1")))
	require.NoError(t, s.Put(testRow(0, "a", "a", "a1")))
	require.NoError(t, s.Put(testRow(0, "c", "a", "c1")))
	require.NoError(t, s.Put(testRow(0, "b", "a", "b2")))

	rows := scanAll(t, s, All())
	assert.Equal(t, []string{"a1", "b2", "c1"}, values(rows))
	assert.Equal(t, []byte{0x01}, rows[0].Key.Bitmask)
	assert.Equal(t, model.AdapterID("a"), rows[0].Key.AdapterID)
	assert.Positive(t, s.MemtableSize())
}

func TestStorePutInvalid(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())

	assert.ErrorIs(t, s.Put(testRow(0, "a", "", "v")), ErrInvalidRow)
	assert.ErrorIs(t, s.Put(testRow(0, "", "a", "v")), ErrInvalidRow)
}

func TestStoreFlushAndReopen(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	s, err := Open(ctx, blobs, WithCompression(CompressionZSTD), WithBlockSize(64))
	require.NoError(t, err)
	for i := range 100 {
		require.NoError(t, s.Put(testRow(byte(i%3), fmt.Sprintf("k%03d", i), "a", fmt.Sprintf("v%d", i))))
	}
	require.NoError(t, s.Flush(ctx))
	assert.Zero(t, s.MemtableSize())
	assert.Equal(t, uint64(1), s.Version())

	segs := s.Segments()
	require.Len(t, segs, 1)
	assert.Equal(t, uint64(100), segs[0].Rows)
	assert.True(t, strings.HasPrefix(segs[0].Path, SegmentPrefix+"000001-"))

	// Unflushed rows are lost on close.
	require.NoError(t, s.Put(testRow(0, "zzz", "a", "lost")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Put(testRow(0, "x", "a", "v")), ErrClosed)
	_, err = s.Scan(ctx, All())
	assert.ErrorIs(t, err, ErrClosed)

	s2 := openStore(t, blobs)
	rows := scanAll(t, s2, All())
	require.Len(t, rows, 100)
	for _, r := range rows {
		assert.NotEqual(t, "lost", string(r.Value))
	}

	rows = scanAll(t, s2, Prefix([]byte{1}, nil))
	assert.Len(t, rows, 33)
}

func TestStoreFlushEmpty(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	require.NoError(t, s.Flush(context.Background()))
	assert.Empty(t, s.Segments())
	assert.Zero(t, s.Version())
}

func TestStoreNewestWins(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())

	require.NoError(t, s.Put(testRow(0, "a", "x", "seg1")))
	require.NoError(t, s.Put(testRow(0, "b", "x", "seg1")))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Put(testRow(0, "a", "x", "seg2")))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Put(testRow(0, "b", "x", "mem")))

	assert.Equal(t, []string{"seg2", "mem"}, values(scanAll(t, s, All())))
	assert.Equal(t, []string{"seg2"}, values(scanAll(t, s, Exact(testRow(0, "a", "x", "").Key))))
}

func TestStoreScanAdapters(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())

	require.NoError(t, s.Put(testRow(0, "a", "roads", "r")))
	require.NoError(t, s.Put(testRow(0, "a", "rivers", "v")))
	require.NoError(t, s.Put(testRow(0, "b", "roads", "r2")))

	assert.Equal(t, []string{"r", "r2"}, values(scanAll(t, s, All(), WithAdapters("roads"))))
	assert.Len(t, scanAll(t, s, All()), 3)
}

func TestStoreIterators(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())

	upper := func(opts map[string]string) (RowTransform, error) {
		drop := opts["drop"]
		return func(r model.Row) (model.Row, bool, error) {
			if string(r.Value) == drop {
				return r, false, nil
			}
			r.Value = []byte(strings.ToUpper(string(r.Value)))
			return r, true, nil
		}, nil
	}
	require.NoError(t, s.RegisterIterator("upper", upper))
	assert.ErrorIs(t, s.RegisterIterator("upper", upper), ErrIteratorExists)
	assert.Equal(t, []string{"upper"}, s.Iterators())

	require.NoError(t, s.Put(testRow(0, "a", "x", "a")))
	require.NoError(t, s.Put(testRow(0, "b", "x", "b")))
	require.NoError(t, s.Put(testRow(0, "c", "x", "c")))

	r, err := s.Scan(context.Background(), All(), WithIterator("upper", map[string]string{"drop": "b"}))
	require.NoError(t, err)
	var got []string
	for r.Next() {
		got = append(got, string(r.Row().Value))
	}
	require.NoError(t, r.Err())
	require.NoError(t, r.Close())
	assert.Equal(t, []string{"A", "C"}, got)
	read, dropped := r.Scanned()
	assert.Equal(t, int64(3), read)
	assert.Equal(t, int64(1), dropped)

	_, err = s.Scan(context.Background(), All(), WithIterator("missing", nil))
	assert.ErrorIs(t, err, ErrUnknownIterator)

	boom := errors.New("boom")
	require.NoError(t, s.RegisterIterator("fail", func(map[string]string) (RowTransform, error) {
		return func(model.Row) (model.Row, bool, error) { return model.Row{}, false, boom }, nil
	}))
	r, err = s.Scan(context.Background(), All(), WithIterator("fail", nil))
	require.NoError(t, err)
	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), boom)
	require.NoError(t, r.Close())
}

func TestStoreReaderCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())
	require.NoError(t, s.Put(testRow(0, "a", "x", "v")))
	require.NoError(t, s.Flush(ctx))

	r, err := s.Scan(ctx, All())
	require.NoError(t, err)
	require.Len(t, r.refs, 1)
	ref := r.refs[0]
	assert.Equal(t, int64(2), ref.refs.Load())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, int64(1), ref.refs.Load())
	assert.False(t, r.Next())
}

func TestStoreScanPrunesSegments(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())

	require.NoError(t, s.Put(testRow(0, "a", "x", "p0")))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Put(testRow(5, "a", "x", "p5")))
	require.NoError(t, s.Flush(ctx))

	r, err := s.Scan(ctx, Prefix([]byte{5}, nil))
	require.NoError(t, err)
	assert.Len(t, r.refs, 1)
	require.True(t, r.Next())
	assert.Equal(t, "p5", string(r.Row().Value))
	assert.False(t, r.Next())
	require.NoError(t, r.Close())
}

func TestStoreCompact(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := openStore(t, blobs)

	for round := range 3 {
		for i := range 10 {
			require.NoError(t, s.Put(testRow(0, fmt.Sprintf("k%02d", i), "x", fmt.Sprintf("r%d-%d", round, i))))
		}
		require.NoError(t, s.Flush(ctx))
	}
	require.Len(t, s.Segments(), 3)

	// A reader open across the compaction keeps its segments alive.
	r, err := s.Scan(ctx, All())
	require.NoError(t, err)

	require.NoError(t, s.Compact(ctx))
	segs := s.Segments()
	require.Len(t, segs, 1)
	assert.Equal(t, uint64(10), segs[0].Rows)

	names, err := blobs.List(ctx, SegmentPrefix)
	require.NoError(t, err)
	assert.Len(t, names, 4)

	var old []string
	for r.Next() {
		old = append(old, string(r.Row().Value))
	}
	require.NoError(t, r.Err())
	require.NoError(t, r.Close())
	assert.Len(t, old, 10)
	assert.Equal(t, "r2-0", old[0])

	names, err = blobs.List(ctx, SegmentPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{segs[0].Path}, names)

	rows := scanAll(t, s, All())
	require.Len(t, rows, 10)
	assert.Equal(t, "r2-9", string(rows[9].Value))

	s2 := openStore(t, blobs)
	assert.Len(t, s2.Segments(), 1)
	assert.Len(t, scanAll(t, s2, All()), 10)
}

func TestStoreMeta(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := openStore(t, blobs)

	_, ok := s.Meta("index")
	assert.False(t, ok)
	require.NoError(t, s.SetMeta(ctx, "index", []byte("spatial")))
	v, ok := s.Meta("index")
	require.True(t, ok)
	assert.Equal(t, "spatial", string(v))

	s2 := openStore(t, blobs)
	v, ok = s2.Meta("index")
	require.True(t, ok)
	assert.Equal(t, "spatial", string(v))

	require.NoError(t, s2.SetMeta(ctx, "index", nil))
	_, ok = s2.Meta("index")
	assert.False(t, ok)
}

func TestStoreConcurrentPutScan(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				assert.NoError(t, s.Put(testRow(byte(w), fmt.Sprintf("k%03d", i), "x", "v")))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 5 {
			assert.NoError(t, s.Flush(ctx))
			r, err := s.Scan(ctx, All())
			if assert.NoError(t, err) {
				for r.Next() {
				}
				assert.NoError(t, r.Err())
				assert.NoError(t, r.Close())
			}
		}
	}()
	wg.Wait()

	require.NoError(t, s.Flush(ctx))
	assert.Len(t, scanAll(t, s, All()), 200)
}

func TestStoreLocal(t *testing.T) {
	ctx := context.Background()
	local, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	s, err := Open(ctx, local)
	require.NoError(t, err)
	require.NoError(t, s.Put(testRow(0, "a", "x", "v")))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Close())

	s2 := openStore(t, local)
	assert.Equal(t, []string{"v"}, values(scanAll(t, s2, All())))
}

func TestStoreMetaKeys(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())

	require.NoError(t, s.SetMeta(ctx, "adapter/b", []byte("1")))
	require.NoError(t, s.SetMeta(ctx, "adapter/a", []byte("2")))
	require.NoError(t, s.SetMeta(ctx, "index", []byte("3")))

	assert.Equal(t, []string{"adapter/a", "adapter/b"}, s.MetaKeys("adapter/"))
	assert.Len(t, s.MetaKeys(""), 3)
	assert.Equal(t, uint64(3), s.Version())
}
