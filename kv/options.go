package kv

import (
	"log/slog"

	"github.com/hupe1980/geokv/model"
	"github.com/hupe1980/geokv/resource"
)

type options struct {
	compression     Compression
	blockSize       int
	openConcurrency int
	rc              *resource.Controller
	logger          *slog.Logger
}

// Option configures a Store.
type Option func(*options)

func applyOptions(optFns []Option) options {
	o := options{
		compression:     CompressionLZ4,
		blockSize:       DefaultBlockSize,
		openConcurrency: 8,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// WithCompression sets the block compression of new segments.
// Default: CompressionLZ4.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithBlockSize sets the target uncompressed block size of new segments.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockSize = n
		}
	}
}

// WithOpenConcurrency bounds how many segments are opened in parallel.
func WithOpenConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.openConcurrency = n
		}
	}
}

// WithResourceController throttles segment reads and writes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type scanOptions struct {
	adapters  map[model.AdapterID]struct{}
	iterators []iteratorSetting
}

type iteratorSetting struct {
	name string
	opts map[string]string
}

// ScanOption configures a scan.
type ScanOption func(*scanOptions)

// WithAdapters restricts a scan to rows of the given adapters.
func WithAdapters(ids ...model.AdapterID) ScanOption {
	return func(o *scanOptions) {
		if o.adapters == nil {
			o.adapters = make(map[model.AdapterID]struct{}, len(ids))
		}
		for _, id := range ids {
			o.adapters[id] = struct{}{}
		}
	}
}

// WithIterator enables the registered iterator name for a scan. Iterators
// run in the order they are given.
func WithIterator(name string, opts map[string]string) ScanOption {
	return func(o *scanOptions) {
		o.iterators = append(o.iterators, iteratorSetting{name: name, opts: opts})
	}
}
