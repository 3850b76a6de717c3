package geokv

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems;
// metrics/prom provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordWrite is called after each Write.
	// count is the number of entries attempted, err is nil if successful.
	RecordWrite(count int, duration time.Duration, err error)

	// RecordQuery is called after a query collected by DB.QueryAll finishes.
	// emitted is the number of entries returned.
	RecordQuery(emitted int, duration time.Duration, err error)

	// RecordFlush is called after each flush.
	RecordFlush(duration time.Duration, err error)

	// RecordCompact is called after each compaction.
	RecordCompact(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordWrite(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFlush(time.Duration, error)      {}
func (NoopMetricsCollector) RecordCompact(time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	WriteCount      atomic.Int64
	WriteEntries    atomic.Int64
	WriteErrors     atomic.Int64
	QueryCount      atomic.Int64
	QueryEmitted    atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64
	FlushCount      atomic.Int64
	FlushErrors     atomic.Int64
	FlushTotalNanos atomic.Int64
	CompactCount    atomic.Int64
	CompactErrors   atomic.Int64
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(count int, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteEntries.Add(int64(count))
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(emitted int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryEmitted.Add(int64(emitted))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordCompact implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompact(_ time.Duration, err error) {
	b.CompactCount.Add(1)
	if err != nil {
		b.CompactErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		WriteCount:    b.WriteCount.Load(),
		WriteEntries:  b.WriteEntries.Load(),
		WriteErrors:   b.WriteErrors.Load(),
		QueryCount:    b.QueryCount.Load(),
		QueryEmitted:  b.QueryEmitted.Load(),
		QueryErrors:   b.QueryErrors.Load(),
		QueryAvgNanos: avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		FlushCount:    b.FlushCount.Load(),
		FlushErrors:   b.FlushErrors.Load(),
		FlushAvgNanos: avg(b.FlushTotalNanos.Load(), b.FlushCount.Load()),
		CompactCount:  b.CompactCount.Load(),
		CompactErrors: b.CompactErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	WriteCount    int64
	WriteEntries  int64
	WriteErrors   int64
	QueryCount    int64
	QueryEmitted  int64
	QueryErrors   int64
	QueryAvgNanos int64
	FlushCount    int64
	FlushErrors   int64
	FlushAvgNanos int64
	CompactCount  int64
	CompactErrors int64
}
