package geokv

import (
	"log/slog"

	"github.com/hupe1980/geokv/blobstore"
	"github.com/hupe1980/geokv/kv"
	"github.com/hupe1980/geokv/resource"
)

// DefaultFlushThreshold is the memtable size at which Write flushes.
const DefaultFlushThreshold = 64 << 20

type options struct {
	blobs            blobstore.BlobStore
	localDir         string
	compression      kv.Compression
	blockSize        int
	blockCacheBytes  int64
	limits           *resource.Config
	flushThreshold   int64
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open.
type Option func(*options)

// WithBlobStore stores data in the given blob store (S3, MinIO, memory, ...).
func WithBlobStore(s blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobs = s
	}
}

// WithLocal stores data in a local directory.
func WithLocal(dir string) Option {
	return func(o *options) {
		o.localDir = dir
	}
}

// WithCompression sets the block compression of new segments.
// Default: kv.CompressionLZ4.
func WithCompression(c kv.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithBlockSize sets the target block size of new segments.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithBlockCache caches segment blocks in memory, up to bytes.
// Useful in front of remote blob stores.
func WithBlockCache(bytes int64) Option {
	return func(o *options) {
		o.blockCacheBytes = bytes
	}
}

// WithResourceLimits bounds concurrent reads, read bandwidth and cache memory.
//
// Example:
//
//	db, _ := geokv.Open[*feature.Feature](ctx, idx,
//	    geokv.WithBlobStore(s3Store),
//	    geokv.WithResourceLimits(resource.Config{
//	        MaxConcurrentReads: 32,
//	        ReadBytesPerSec:    256 << 20,
//	    }),
//	)
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.limits = &cfg
	}
}

// WithFlushThreshold sets the memtable size at which Write flushes
// automatically. n <= 0 disables automatic flushing.
func WithFlushThreshold(n int64) Option {
	return func(o *options) {
		o.flushThreshold = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &geokv.BasicMetricsCollector{}
//	db, _ := geokv.Open[*feature.Feature](ctx, idx, geokv.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Writes: %d, Queries: %d\n", stats.WriteEntries, stats.QueryCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression:      kv.CompressionLZ4,
		flushThreshold:   DefaultFlushThreshold,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
