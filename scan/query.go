package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/projection"
)

// Reader supplies raw rows in strictly ascending key order.
type Reader interface {
	// Next advances to the next row and reports whether there is one.
	Next() bool
	// Row returns the current row. It is valid until the next call to Next.
	Row() model.Row
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases the reader's resources.
	Close() error
}

// Resolver looks up the adapter of a row.
type Resolver[T any] interface {
	Resolve(id model.AdapterID) (adapter.Adapter[T], bool)
}

// Callback observes every emitted entry. It must not panic; a panic aborts
// the scan.
type Callback[T any] func(entry T, row model.Row)

// State is the lifecycle state of a Query.
type State int32

const (
	Created State = iota
	Open
	Exhausted
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Open:
		return "open"
	case Exhausted:
		return "exhausted"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Query is a single pass over a Reader.
//
// Next must be called from one goroutine at a time. Close may be called
// concurrently with Next.
type Query[T any] struct {
	reader   Reader
	resolver Resolver[T]
	callback Callback[T]
	opts     options

	state atomic.Int32

	mu       sync.Mutex // guards reader and everything below
	released bool
	rows     int64
	emitted  int64
	last     sample
}

// sample identifies the last emitted row at subsampling resolution.
type sample struct {
	valid     bool
	partition []byte
	adapterID model.AdapterID
	reduced   []byte
}

// New creates a query in state Created. The reader is owned by the query from
// here on and released by Close.
func New[T any](reader Reader, resolver Resolver[T], callback Callback[T], optFns ...Option) (*Query[T], error) {
	if reader == nil {
		return nil, errors.New("scan: reader is required")
	}
	o := applyOptions(optFns)
	if resolver == nil {
		_ = reader.Close()
		if o.cancel != nil {
			o.cancel()
		}
		return nil, errors.New("scan: resolver is required")
	}
	return &Query[T]{
		reader:   reader,
		resolver: resolver,
		callback: callback,
		opts:     o,
	}, nil
}

// State returns the current state.
func (q *Query[T]) State() State { return State(q.state.Load()) }

// Stats returns the counters the query records into.
func (q *Query[T]) Stats() *Stats { return q.opts.stats }

// Next returns the next entry. It returns io.EOF once the reader is drained
// or the limit is reached. Failures are reported as *model.PartialReadError
// and close the query.
func (q *Query[T]) Next() (T, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.State() {
	case Closed:
		return zero, errClosed
	case Exhausted:
		return zero, io.EOF
	case Created:
		q.state.CompareAndSwap(int32(Created), int32(Open))
	}

	for {
		if q.State() == Closed {
			return zero, errClosed
		}
		if q.opts.limit > 0 && q.emitted >= q.opts.limit {
			q.exhaust()
			return zero, io.EOF
		}
		if !q.reader.Next() {
			if q.State() == Closed {
				// Close interrupted the reader.
				_ = q.release()
				return zero, errClosed
			}
			if err := q.reader.Err(); err != nil {
				return zero, q.fail(nil, err)
			}
			q.exhaust()
			return zero, io.EOF
		}

		row := q.reader.Row()
		q.rows++
		q.opts.stats.Read.Add(1)

		entry, row, ok, err := q.process(row)
		if err != nil {
			if q.opts.onError != nil && q.opts.onError(row, err) {
				q.opts.stats.Skipped.Add(1)
				q.opts.logger.Warn("scan: skipping row", "key", row.Key.String(), "error", err)
				continue
			}
			return zero, q.fail(&row.Key, err)
		}
		if !ok {
			continue
		}

		if q.State() == Closed {
			return zero, errClosed
		}
		if err := q.invoke(entry, row); err != nil {
			return zero, q.fail(&row.Key, err)
		}
		q.emitted++
		q.opts.stats.Emitted.Add(1)
		if q.opts.limit > 0 && q.emitted >= q.opts.limit {
			q.exhaust()
		}
		return entry, nil
	}
}

// process runs a row through resolve, projection, filter, decode and
// subsampling. ok is false when the row is not emitted. The filter sees the
// projected row, as it does when the projection runs inside the store.
func (q *Query[T]) process(row model.Row) (entry T, out model.Row, ok bool, err error) {
	out = row

	a, found := q.resolver.Resolve(row.Key.AdapterID)
	if !found {
		q.opts.stats.Unknown.Add(1)
		if q.opts.unknown == FailUnknown {
			return entry, out, false, fmt.Errorf("%w: %q", model.ErrUnknownAdapter, row.Key.AdapterID)
		}
		q.opts.logger.Warn("scan: skipping row of unknown adapter", "adapter", string(row.Key.AdapterID))
		if q.opts.onUnknown != nil {
			q.opts.onUnknown(row)
		}
		return entry, out, false, nil
	}

	if q.opts.projection != nil {
		projected, outcome, err := q.opts.projection.Apply(row)
		if err != nil {
			return entry, out, false, err
		}
		if outcome == projection.Dropped {
			q.opts.stats.Projected.Add(1)
			return entry, out, false, nil
		}
		out = projected
	}

	if q.opts.filter != nil {
		accept, err := q.opts.filter.Accept(a, out)
		if err != nil {
			return entry, out, false, fmt.Errorf("filter: %w", err)
		}
		if !accept {
			q.opts.stats.Filtered.Add(1)
			return entry, out, false, nil
		}
	}

	entry, err = adapter.DecodeRow(a, out)
	if err != nil {
		return entry, out, false, fmt.Errorf("decode: %w", err)
	}

	if q.opts.subsampler != nil {
		reduced, err := q.opts.subsampler.Reduce(out.Key.SortKey)
		if err != nil {
			return entry, out, false, fmt.Errorf("subsample: %w", err)
		}
		if q.last.matches(out.Key, reduced) {
			q.opts.stats.Subsampled.Add(1)
			return entry, out, false, nil
		}
		q.last = sample{
			valid:     true,
			partition: bytes.Clone(out.Key.Partition),
			adapterID: out.Key.AdapterID,
			reduced:   reduced,
		}
	}
	return entry, out, true, nil
}

func (s sample) matches(k model.Key, reduced []byte) bool {
	return s.valid &&
		s.adapterID == k.AdapterID &&
		bytes.Equal(s.partition, k.Partition) &&
		bytes.Equal(s.reduced, reduced)
}

func (q *Query[T]) invoke(entry T, row model.Row) (err error) {
	if q.callback == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()
	q.callback(entry, row)
	return nil
}

func (q *Query[T]) exhaust() {
	q.state.CompareAndSwap(int32(Open), int32(Exhausted))
}

// fail closes the query and wraps cause. Callers hold mu.
func (q *Query[T]) fail(key *model.Key, cause error) error {
	q.state.Store(int32(Closed))
	if err := q.release(); err != nil {
		q.opts.logger.Warn("scan: releasing reader", "error", err)
	}
	perr := &model.PartialReadError{Rows: q.rows, Err: cause}
	if key != nil {
		k := key.Clone()
		perr.Key = &k
	}
	q.opts.logger.Error("scan: aborted", "rows", q.rows, "error", cause)
	return perr
}

// release closes the reader once. Callers hold mu.
func (q *Query[T]) release() error {
	if q.released {
		return nil
	}
	q.released = true
	err := q.reader.Close()
	if q.opts.cancel != nil {
		q.opts.cancel()
	}
	return err
}

// Close closes the query and releases the reader. It is idempotent; only the
// call that actually releases the reader can return an error. Close may run
// concurrently with Next; it cancels the reader's context, if one was
// registered with WithCancel, and then waits for Next to return.
func (q *Query[T]) Close() error {
	q.state.Store(int32(Closed))
	if q.opts.cancel != nil {
		q.opts.cancel()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.release()
}

// All returns an iterator over the remaining entries. The query is closed
// when iteration stops. A failure is yielded once as the final pair.
func (q *Query[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer q.Close()
		for {
			entry, err := q.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(entry, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// Collect drains the query into a slice and closes it.
func (q *Query[T]) Collect() ([]T, error) {
	var out []T
	for entry, err := range q.All() {
		if err != nil {
			return out, err
		}
		out = append(out, entry)
	}
	return out, nil
}
