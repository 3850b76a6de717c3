// Package prom exports geokv metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/geokv"
)

// Collector implements geokv.MetricsCollector with Prometheus metrics.
type Collector struct {
	latency *prometheus.HistogramVec
	ops     *prometheus.CounterVec
	entries *prometheus.CounterVec
}

var _ geokv.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geokv_operation_latency_seconds",
			Help:    "Latency of database operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geokv_operations_total",
			Help: "Database operations by type and status",
		}, []string{"op", "status"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geokv_entries_total",
			Help: "Entries written and emitted",
		}, []string{"op"}),
	}
	reg.MustRegister(c.latency, c.ops, c.entries)
	return c
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.latency.WithLabelValues(op, status).Observe(d.Seconds())
	c.ops.WithLabelValues(op, status).Inc()
}

// RecordWrite implements geokv.MetricsCollector.
func (c *Collector) RecordWrite(count int, d time.Duration, err error) {
	c.observe("write", d, err)
	if err == nil {
		c.entries.WithLabelValues("write").Add(float64(count))
	}
}

// RecordQuery implements geokv.MetricsCollector.
func (c *Collector) RecordQuery(emitted int, d time.Duration, err error) {
	c.observe("query", d, err)
	c.entries.WithLabelValues("query").Add(float64(emitted))
}

// RecordFlush implements geokv.MetricsCollector.
func (c *Collector) RecordFlush(d time.Duration, err error) { c.observe("flush", d, err) }

// RecordCompact implements geokv.MetricsCollector.
func (c *Collector) RecordCompact(d time.Duration, err error) { c.observe("compact", d, err) }
