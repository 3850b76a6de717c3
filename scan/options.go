package scan

import (
	"context"
	"log/slog"

	"github.com/hupe1980/geokv/adapter"
	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/projection"
)

// Filter selects rows after projection and before they are decoded.
type Filter interface {
	Accept(m adapter.Model, row model.Row) (bool, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(m adapter.Model, row model.Row) (bool, error)

// Accept implements Filter.
func (f FilterFunc) Accept(m adapter.Model, row model.Row) (bool, error) { return f(m, row) }

// Subsampler reduces a sort key to the resolution at which rows are
// considered duplicates.
type Subsampler interface {
	Reduce(sortKey []byte) ([]byte, error)
}

// UnknownAdapterPolicy decides what happens to rows whose adapter cannot be
// resolved.
type UnknownAdapterPolicy uint8

const (
	// SkipUnknown hands the undecoded row to the unknown-row handler, if any,
	// and moves on.
	SkipUnknown UnknownAdapterPolicy = iota
	// FailUnknown aborts the scan with model.ErrUnknownAdapter.
	FailUnknown
)

// ErrorHandler is consulted when a row fails to filter, project or decode.
// Returning true skips the row and continues the scan.
type ErrorHandler func(row model.Row, err error) bool

// SkipAll is an ErrorHandler that skips every failing row.
func SkipAll(model.Row, error) bool { return true }

// Option configures a Query.
type Option func(o *options)

type options struct {
	limit      int64
	filter     Filter
	projection *projection.Transform
	subsampler Subsampler
	unknown    UnknownAdapterPolicy
	onUnknown  func(model.Row)
	onError    ErrorHandler
	logger     *slog.Logger
	stats      *Stats
	cancel     context.CancelFunc
}

func applyOptions(optFns []Option) options {
	o := options{
		unknown: SkipUnknown,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.stats == nil {
		o.stats = &Stats{}
	}
	return o
}

// WithLimit caps the number of emitted entries. n <= 0 means unlimited.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = int64(max(n, 0))
	}
}

// WithFilter sets the row filter.
func WithFilter(f Filter) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithProjection applies t to every row on the client side.
func WithProjection(t *projection.Transform) Option {
	return func(o *options) {
		o.projection = t
	}
}

// WithSubsampler enables resolution-based subsampling.
func WithSubsampler(s Subsampler) Option {
	return func(o *options) {
		o.subsampler = s
	}
}

// WithUnknownAdapterPolicy sets the policy for unresolvable rows.
func WithUnknownAdapterPolicy(p UnknownAdapterPolicy) Option {
	return func(o *options) {
		o.unknown = p
	}
}

// WithUnknownRowHandler receives rows skipped under SkipUnknown, undecoded.
func WithUnknownRowHandler(fn func(model.Row)) Option {
	return func(o *options) {
		o.onUnknown = fn
	}
}

// WithErrorHandler enables skip-and-continue for failing rows.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.onError = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCancel registers the cancel function of the context the reader runs
// under. Close calls it first, so that a Next blocked in the reader returns.
func WithCancel(cancel context.CancelFunc) Option {
	return func(o *options) {
		o.cancel = cancel
	}
}

// WithStats records counters into s. Stats may be shared between queries.
func WithStats(s *Stats) Option {
	return func(o *options) {
		o.stats = s
	}
}
