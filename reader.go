package geokv

import (
	"context"

	"github.com/hupe1980/geokv/kv"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/scan"
)

// rangeReader chains scans over ascending, disjoint key ranges into one
// scan.Reader. Ranges are opened one at a time.
type rangeReader struct {
	ctx    context.Context
	store  *kv.Store
	ranges []kv.Range
	opts   []kv.ScanOption

	cur    *kv.Reader
	next   int
	err    error
	closed bool
}

var _ scan.Reader = (*rangeReader)(nil)

// newRangeReader opens the first range right away so that invalid scan
// options fail before the query starts.
func newRangeReader(ctx context.Context, store *kv.Store, ranges []kv.Range, opts []kv.ScanOption) (*rangeReader, error) {
	r := &rangeReader{ctx: ctx, store: store, ranges: ranges, opts: opts}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rangeReader) open() error {
	if r.next >= len(r.ranges) {
		return nil
	}
	cur, err := r.store.Scan(r.ctx, r.ranges[r.next], r.opts...)
	if err != nil {
		return translateError(err)
	}
	r.cur = cur
	r.next++
	return nil
}

func (r *rangeReader) Next() bool {
	if r.err != nil || r.closed {
		return false
	}
	for r.cur != nil {
		if err := r.ctx.Err(); err != nil {
			r.err = err
			return false
		}
		if r.cur.Next() {
			return true
		}
		if err := r.cur.Err(); err != nil {
			r.err = err
			return false
		}
		if err := r.closeCurrent(); err != nil {
			r.err = err
			return false
		}
		if err := r.open(); err != nil {
			r.err = err
			return false
		}
	}
	return false
}

func (r *rangeReader) closeCurrent() error {
	err := r.cur.Close()
	r.cur = nil
	return err
}

func (r *rangeReader) Row() model.Row { return r.cur.Row() }

func (r *rangeReader) Err() error { return r.err }

func (r *rangeReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.cur != nil {
		return r.closeCurrent()
	}
	return nil
}
