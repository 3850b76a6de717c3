package geokv

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/blobstore"
	"github.com/hupe1980/geokv/index"
	"github.com/hupe1980/geokv/internal/cache"
	"github.com/hupe1980/geokv/kv"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/projection"
	"github.com/hupe1980/geokv/resource"
)

// Metadata keys committed with the store manifest.
const (
	metaIndex         = "index"
	metaAdapterPrefix = "adapter/"
)

// DB stores entries of type T under one index model. Entries are mapped to
// rows by registered adapters. DB is safe for concurrent use.
type DB[T any] struct {
	idx      *index.Model
	store    *kv.Store
	registry *adapter.Registry[T]
	cache    cache.BlockCache
	rc       *resource.Controller
	opts     options
	logger   *Logger
	metrics  MetricsCollector
	closed   atomic.Bool
}

// Open opens or creates a database.
//
// On first use idx defines the index model and is committed with the
// store. Later opens may pass nil to use the stored model; a non-nil idx must
// equal the stored one.
func Open[T any](ctx context.Context, idx *index.Model, optFns ...Option) (*DB[T], error) {
	opts := applyOptions(optFns)

	blobs := opts.blobs
	if blobs == nil {
		if opts.localDir != "" {
			local, err := blobstore.NewLocalStore(opts.localDir)
			if err != nil {
				return nil, err
			}
			blobs = local
		} else {
			blobs = blobstore.NewMemoryStore()
		}
	}

	var rc *resource.Controller
	if opts.limits != nil {
		rc = resource.NewController(*opts.limits)
	}
	var bc cache.BlockCache
	if opts.blockCacheBytes > 0 {
		bc = cache.NewSharded(opts.blockCacheBytes, rc)
		blobs = blobstore.NewCachingStore(blobs, bc, blobstore.DefaultBlockSize)
	}

	kvOpts := []kv.Option{
		kv.WithCompression(opts.compression),
		kv.WithResourceController(rc),
		kv.WithLogger(opts.logger.Logger),
	}
	if opts.blockSize > 0 {
		kvOpts = append(kvOpts, kv.WithBlockSize(opts.blockSize))
	}
	store, err := kv.Open(ctx, blobs, kvOpts...)
	if err != nil {
		return nil, err
	}

	idx, err = resolveIndex(ctx, store, idx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := store.RegisterIterator(projection.IteratorName, pushDownIterator); err != nil {
		_ = store.Close()
		return nil, err
	}

	registry, _ := adapter.NewRegistry[T]()
	db := &DB[T]{
		idx:      idx,
		store:    store,
		registry: registry,
		cache:    bc,
		rc:       rc,
		opts:     opts,
		logger:   opts.logger.WithIndex(idx.ID),
		metrics:  opts.metricsCollector,
	}
	db.logger.InfoContext(ctx, "database opened",
		"dimensions", len(idx.Dimensions),
		"bits", idx.Bits,
		"segments", len(store.Segments()),
	)
	return db, nil
}

func pushDownIterator(opts map[string]string) (kv.RowTransform, error) {
	return projection.Iterator(opts)
}

func resolveIndex(ctx context.Context, store *kv.Store, idx *index.Model) (*index.Model, error) {
	stored, ok := store.Meta(metaIndex)
	if ok {
		var m index.Model
		if err := m.UnmarshalBinary(stored); err != nil {
			return nil, fmt.Errorf("geokv: stored index: %w", err)
		}
		if idx == nil {
			return &m, nil
		}
		given, err := idx.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(given, stored) {
			return nil, &ErrIndexMismatch{Stored: m.ID, Given: idx.ID}
		}
		return idx, nil
	}

	if idx == nil {
		return nil, ErrNoIndex
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	b, err := idx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := store.SetMeta(ctx, metaIndex, b); err != nil {
		return nil, err
	}
	return idx, nil
}

// Index returns the index model.
func (db *DB[T]) Index() *index.Model { return db.idx }

// Store returns the underlying key-value store.
func (db *DB[T]) Store() *kv.Store { return db.store }

// RegisterAdapter registers an adapter. Its field layout is committed with
// the store; re-registering an adapter with a different layout fails, since
// stored bitmasks refer to field ordinals.
func (db *DB[T]) RegisterAdapter(ctx context.Context, a adapter.Adapter[T]) error {
	if db.closed.Load() {
		return ErrClosed
	}
	for _, d := range db.idx.DimensionFields() {
		if _, ok := a.Position(d); !ok {
			return fmt.Errorf("geokv: adapter %s lacks dimension field %s", a.ID(), d)
		}
	}
	layout, err := adapter.Describe(a).MarshalBinary()
	if err != nil {
		return err
	}
	key := metaAdapterPrefix + string(a.ID())
	if stored, ok := db.store.Meta(key); ok {
		if !bytes.Equal(stored, layout) {
			return fmt.Errorf("geokv: adapter %s: field layout differs from the stored layout", a.ID())
		}
	} else if err := db.store.SetMeta(ctx, key, layout); err != nil {
		return translateError(err)
	}
	if err := db.registry.Register(a); err != nil {
		return err
	}
	db.logger.DebugContext(ctx, "adapter registered", "adapter", string(a.ID()), "fields", len(a.Fields()))
	return nil
}

// Adapters returns the ids of the registered adapters.
func (db *DB[T]) Adapters() []model.AdapterID { return db.registry.IDs() }

// Layouts returns the field layouts committed with the store, including
// those of adapters not registered in this process.
func (db *DB[T]) Layouts() ([]*adapter.Layout, error) {
	keys := db.store.MetaKeys(metaAdapterPrefix)
	out := make([]*adapter.Layout, 0, len(keys))
	for _, k := range keys {
		b, _ := db.store.Meta(k)
		var l adapter.Layout
		if err := l.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("geokv: layout %s: %w", strings.TrimPrefix(k, metaAdapterPrefix), err)
		}
		out = append(out, &l)
	}
	return out, nil
}

// Write stores entries with the adapter adapterID. A later write of an entry
// with the same data id and position replaces the earlier one. Entries are
// durable after Flush; Write flushes on its own once the memtable exceeds
// the flush threshold.
func (db *DB[T]) Write(ctx context.Context, adapterID model.AdapterID, entries ...T) error {
	start := time.Now()
	err := db.write(ctx, adapterID, entries)
	db.metrics.RecordWrite(len(entries), time.Since(start), err)
	db.logger.LogWrite(ctx, adapterID, len(entries), err)
	return err
}

func (db *DB[T]) write(ctx context.Context, adapterID model.AdapterID, entries []T) error {
	if db.closed.Load() {
		return ErrClosed
	}
	a, ok := db.registry.Resolve(adapterID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAdapter, adapterID)
	}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := a.Encode(entry)
		if err != nil {
			return fmt.Errorf("geokv: entry %d: %w", i, err)
		}
		row, err := db.idx.Row(adapterID, e)
		if err != nil {
			return fmt.Errorf("geokv: entry %d: %w", i, err)
		}
		if err := db.store.Put(row); err != nil {
			return translateError(err)
		}
	}
	if t := db.opts.flushThreshold; t > 0 && db.store.MemtableSize() >= t {
		return db.Flush(ctx)
	}
	return nil
}

// Flush makes all written entries durable.
func (db *DB[T]) Flush(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	err := translateError(db.store.Flush(ctx))
	d := time.Since(start)
	db.metrics.RecordFlush(d, err)
	db.logger.LogFlush(ctx, len(db.store.Segments()), d, err)
	return err
}

// Compact merges all segments into one.
func (db *DB[T]) Compact(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	before := len(db.store.Segments())
	start := time.Now()
	err := translateError(db.store.Compact(ctx))
	db.metrics.RecordCompact(time.Since(start), err)
	db.logger.LogCompact(ctx, before, len(db.store.Segments()), err)
	return err
}

// CacheStats returns block cache hits and misses. Both are zero without
// WithBlockCache.
func (db *DB[T]) CacheStats() (hits, misses int64) {
	if db.cache == nil {
		return 0, 0
	}
	return db.cache.Stats()
}

// Close closes the database. Unflushed entries are discarded. Close is
// idempotent.
func (db *DB[T]) Close() error {
	if db == nil || !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.store.Close()
}
