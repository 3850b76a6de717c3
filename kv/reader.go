package kv

import (
	"sync"

	"github.com/hupe1980/geokv/model"
)

// Reader streams rows of a scan in ascending key order. It implements
// scan.Reader. A Reader is not safe for concurrent use.
type Reader struct {
	it         *mergeIterator
	adapters   map[model.AdapterID]struct{}
	transforms []RowTransform
	refs       []*segmentRef

	row     model.Row
	err     error
	read    int64
	dropped int64

	closeOnce sync.Once
	closeErr  error
}

// Next advances to the next row.
func (r *Reader) Next() bool {
	if r.err != nil || r.it == nil {
		return false
	}
	for r.it.next() {
		r.read++
		row, err := r.it.entry().row()
		if err != nil {
			r.err = err
			return false
		}
		if r.adapters != nil {
			if _, ok := r.adapters[row.Key.AdapterID]; !ok {
				continue
			}
		}
		keep := true
		for _, t := range r.transforms {
			if row, keep, err = t(row); err != nil {
				r.err = err
				return false
			}
			if !keep {
				break
			}
		}
		if !keep {
			r.dropped++
			continue
		}
		r.row = row
		return true
	}
	r.err = r.it.err()
	return false
}

// Row returns the current row.
func (r *Reader) Row() model.Row { return r.row }

// Err returns the error that stopped the scan.
func (r *Reader) Err() error { return r.err }

// Scanned returns how many stored rows were read and how many of them the
// scan's iterators dropped.
func (r *Reader) Scanned() (read, dropped int64) { return r.read, r.dropped }

// Close releases the segments held by the reader. It is idempotent.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		if r.it != nil {
			r.closeErr = r.it.close()
		}
		for _, ref := range r.refs {
			ref.release()
		}
		r.refs = nil
		r.it = nil
	})
	return r.closeErr
}
