package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/geokv/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts backend reads of a wrapped store.
type countingStore struct {
	BlobStore
	reads atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.BlobStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, reads: &s.reads}, nil
}

type countingBlob struct {
	Blob
	reads *atomic.Int64
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

func TestCachingStore(t *testing.T) {
	storeSuite(t, NewCachingStore(NewMemoryStore(), cache.NewLRU(1<<20, nil), 4))
}

func TestCachingStore_ServesRepeatedReadsFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{BlobStore: NewMemoryStore()}
	data := bytes.Repeat([]byte("0123456789"), 10)
	require.NoError(t, inner.Put(ctx, "blob", data))

	s := NewCachingStore(inner, cache.NewLRU(1<<20, nil), 16)
	b, err := s.Open(ctx, "blob")
	require.NoError(t, err)
	defer b.Close()

	p := make([]byte, 40)
	n, err := b.ReadAt(ctx, p, 5)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data[5:45], p)
	first := inner.reads.Load()
	assert.Equal(t, int64(1), first, "contiguous misses are fetched in one read")

	n, err = b.ReadAt(ctx, p, 5)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, first, inner.reads.Load())
}

func TestCachingStore_ReadPastEnd(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "blob", []byte("abcdefghij")))

	s := NewCachingStore(inner, cache.NewLRU(1<<20, nil), 4)
	b, err := s.Open(ctx, "blob")
	require.NoError(t, err)

	p := make([]byte, 8)
	n, err := b.ReadAt(ctx, p, 6)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
	assert.Equal(t, "ghij", string(p[:n]))

	n, err = b.ReadAt(ctx, p, 10)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestCachingStore_PutInvalidates(t *testing.T) {
	ctx := context.Background()
	c := cache.NewLRU(1<<20, nil)
	s := NewCachingStore(NewMemoryStore(), c, 4)

	require.NoError(t, s.Put(ctx, "blob", []byte("old-data")))
	got, err := Get(ctx, s, "blob")
	require.NoError(t, err)
	assert.Equal(t, "old-data", string(got))

	require.NoError(t, s.Put(ctx, "blob", []byte("new-data")))
	got, err = Get(ctx, s, "blob")
	require.NoError(t, err)
	assert.Equal(t, "new-data", string(got))
}

func TestCachingStore_ContextCanceled(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "blob", []byte("abcdefghij")))

	s := NewCachingStore(inner, cache.NewLRU(1<<20, nil), 4)
	b, err := s.Open(ctx, "blob")
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = b.ReadAt(cctx, make([]byte, 2), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
