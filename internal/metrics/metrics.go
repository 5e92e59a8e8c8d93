// Package metrics collects projection telemetry with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives projection events. The engine records through this
// interface so metrics stay optional.
type Recorder interface {
	RecordResolve(model, field, strategy string, batch int, duration time.Duration, err error)
	RecordProjection(model string, records int, duration time.Duration, err error)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	registry *prometheus.Registry

	resolveTotal   *prometheus.CounterVec
	resolveLatency *prometheus.HistogramVec
	resolveBatch   *prometheus.HistogramVec
	projectTotal   *prometheus.CounterVec
	projectLatency *prometheus.HistogramVec
	projectedTotal *prometheus.CounterVec
}

// NewCollector creates a collector registered on its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "selectapi"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "calls_total",
			Help:      "Batched resolver calls, one per selected field per batch",
		},
		[]string{"model", "field", "strategy", "result"},
	)

	c.resolveLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Time taken by one batched resolver call",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"strategy", "result"},
	)

	c.resolveBatch = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "batch_size",
			Help:      "Records handled by one batched resolver call",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
		},
		[]string{"strategy"},
	)

	c.projectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "calls_total",
			Help:      "Top-level projection calls",
		},
		[]string{"model", "result"},
	)

	c.projectLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "duration_seconds",
			Help:      "Time taken by one top-level projection",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"model", "result"},
	)

	c.projectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "records_total",
			Help:      "Client records produced by successful projections",
		},
		[]string{"model"},
	)

	c.registry.MustRegister(
		c.resolveTotal,
		c.resolveLatency,
		c.resolveBatch,
		c.projectTotal,
		c.projectLatency,
		c.projectedTotal,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordResolve records one batched resolver call.
func (c *Collector) RecordResolve(model, field, strategy string, batch int, duration time.Duration, err error) {
	result := resultLabel(err)
	c.resolveTotal.WithLabelValues(model, field, strategy, result).Inc()
	c.resolveLatency.WithLabelValues(strategy, result).Observe(duration.Seconds())
	c.resolveBatch.WithLabelValues(strategy).Observe(float64(batch))
}

// RecordProjection records one top-level projection.
func (c *Collector) RecordProjection(model string, records int, duration time.Duration, err error) {
	result := resultLabel(err)
	c.projectTotal.WithLabelValues(model, result).Inc()
	c.projectLatency.WithLabelValues(model, result).Observe(duration.Seconds())
	if err == nil {
		c.projectedTotal.WithLabelValues(model).Add(float64(records))
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// NoOp discards every event.
type NoOp struct{}

func (NoOp) RecordResolve(model, field, strategy string, batch int, d time.Duration, err error) {}
func (NoOp) RecordProjection(model string, records int, d time.Duration, err error)             {}
