package geokv

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/geokv/filter"
	"github.com/hupe1980/geokv/kv"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/projection"
	"github.com/hupe1980/geokv/scan"
)

// Box is an inclusive range over the index dimensions.
type Box struct {
	Min []float64
	Max []float64
}

// QueryOptions describes a query.
type QueryOptions[T any] struct {
	// AdapterID is the adapter Fields refer to. Required with Fields.
	AdapterID model.AdapterID
	// Fields projects rows of AdapterID onto these fields. The index
	// dimension fields are always kept. Empty means all fields.
	Fields []model.FieldID
	// PushDown runs the projection inside the store scan instead of the
	// client.
	PushDown bool
	// DropMismatched drops rows of adapters other than AdapterID. By default
	// they pass through unprojected.
	DropMismatched bool

	// Adapters restricts the scan to these adapters. Empty means all.
	Adapters []model.AdapterID
	// Range restricts the scan to a box. Nil scans everything.
	Range *Box
	// MaxRanges bounds the key ranges Range is decomposed into.
	// 0 means index.DefaultMaxRanges.
	MaxRanges int

	// Filter selects rows before decoding. It sees projected rows, so a
	// filter on a field outside Fields rejects rows of AdapterID.
	Filter scan.Filter
	// MaxResolution enables subsampling at the given per-dimension
	// resolution.
	MaxResolution []float64
	// Limit caps the number of entries. 0 means unlimited.
	Limit int
	// Callback observes every emitted entry.
	Callback scan.Callback[T]

	// SkipErrors skips rows that fail to filter, project or decode instead
	// of aborting the scan.
	SkipErrors bool
	// FailUnknown aborts the scan on rows of unregistered adapters instead
	// of skipping them.
	FailUnknown bool
	// Stats, if set, receives the scan counters.
	Stats *scan.Stats
}

// Query starts a query. The caller must Close the returned query, or drain
// it with All or Collect.
func (db *DB[T]) Query(ctx context.Context, q QueryOptions[T]) (*scan.Query[T], error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}

	scanOpts := []scan.Option{
		scan.WithLimit(q.Limit),
		scan.WithLogger(db.logger.Logger),
	}
	var kvOpts []kv.ScanOption

	if q.Stats != nil {
		scanOpts = append(scanOpts, scan.WithStats(q.Stats))
	}
	if q.SkipErrors {
		scanOpts = append(scanOpts, scan.WithErrorHandler(scan.SkipAll))
	}
	if q.FailUnknown {
		scanOpts = append(scanOpts, scan.WithUnknownAdapterPolicy(scan.FailUnknown))
	}
	if len(q.Adapters) > 0 {
		kvOpts = append(kvOpts, kv.WithAdapters(q.Adapters...))
	}

	var filters []filter.Filter
	if q.Range != nil {
		bbox, err := filter.NewBBox(db.idx, q.Range.Min, q.Range.Max)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		filters = append(filters, bbox)
	}
	if q.Filter != nil {
		filters = append(filters, q.Filter)
	}
	switch len(filters) {
	case 0:
	case 1:
		scanOpts = append(scanOpts, scan.WithFilter(filters[0]))
	default:
		scanOpts = append(scanOpts, scan.WithFilter(filter.And(filters...)))
	}

	if q.DropMismatched && q.AdapterID == "" {
		return nil, fmt.Errorf("%w: DropMismatched needs an AdapterID", ErrInvalidQuery)
	}
	if len(q.Fields) > 0 {
		opt, kvOpt, err := db.projection(q)
		if err != nil {
			return nil, err
		}
		if opt != nil {
			scanOpts = append(scanOpts, opt)
		}
		if kvOpt != nil {
			kvOpts = append(kvOpts, kvOpt)
		}
	} else if q.DropMismatched {
		kvOpts = append(kvOpts, kv.WithAdapters(q.AdapterID))
	}

	if q.MaxResolution != nil {
		s, err := db.idx.Subsampler(q.MaxResolution)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		scanOpts = append(scanOpts, scan.WithSubsampler(s))
	}

	ranges, err := db.ranges(q.Range, q.MaxRanges)
	if err != nil {
		return nil, err
	}
	// The reader runs under its own context so that Close can interrupt a
	// blocked read.
	ctx, cancel := context.WithCancel(ctx)
	reader, err := newRangeReader(ctx, db.store, ranges, kvOpts)
	if err != nil {
		cancel()
		return nil, err
	}
	scanOpts = append(scanOpts, scan.WithCancel(cancel))
	return scan.New(reader, db.registry, q.Callback, scanOpts...)
}

// projection returns the option that applies the projection of q, either on
// the client or pushed down into the store.
func (db *DB[T]) projection(q QueryOptions[T]) (scan.Option, kv.ScanOption, error) {
	if q.AdapterID == "" {
		return nil, nil, fmt.Errorf("%w: Fields need an AdapterID", ErrInvalidQuery)
	}
	a, ok := db.registry.Resolve(q.AdapterID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, q.AdapterID)
	}
	policy := projection.PassThrough
	if q.DropMismatched {
		policy = projection.DropMismatched
	}

	if q.PushDown {
		opts, err := projection.EncodeOptions(a, q.Fields, db.idx, policy)
		if err != nil {
			return nil, nil, err
		}
		return nil, kv.WithIterator(projection.IteratorName, opts), nil
	}
	t, err := projection.New(projection.Config{
		Adapter:        a,
		FieldIDs:       q.Fields,
		Dimensions:     db.idx.DimensionFields(),
		MismatchPolicy: policy,
	})
	if err != nil {
		return nil, nil, err
	}
	return scan.WithProjection(t), nil, nil
}

// ranges plans the key ranges of a query: every partition times the index
// key ranges covering box.
func (db *DB[T]) ranges(box *Box, maxRanges int) ([]kv.Range, error) {
	if box == nil {
		return []kv.Range{kv.All()}, nil
	}
	krs, err := db.idx.Ranges(box.Min, box.Max, maxRanges)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	var out []kv.Range
	for _, p := range db.idx.PartitionKeys() {
		for _, kr := range krs {
			out = append(out, kv.SortKeyRange(p, kr.Lo, kr.Hi))
		}
	}
	return out, nil
}

// QueryAll runs a query to completion and returns the entries.
func (db *DB[T]) QueryAll(ctx context.Context, q QueryOptions[T]) ([]T, error) {
	start := time.Now()
	var entries []T
	query, err := db.Query(ctx, q)
	if err == nil {
		entries, err = query.Collect()
	}
	db.metrics.RecordQuery(len(entries), time.Since(start), err)
	db.logger.LogQuery(ctx, q.AdapterID, len(entries), q.PushDown, err)
	return entries, err
}
