// Package metrics exposes Prometheus collectors for the augmentation pipeline.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medaug"

// Collector groups the pipeline's metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	invocations *prometheus.CounterVec
	operators   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Records transformed, by mode and layout.",
		}, []string{"mode", "layout"}),
		operators: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operator_applied_total",
			Help:      "Operators that fired, by operator name.",
		}, []string{"operator"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Records rejected, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_seconds",
			Help:      "Time spent transforming one record.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}

	for _, col := range []prometheus.Collector{c.invocations, c.operators, c.failures, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// ObserveInvocation records one successful transform.
func (c *Collector) ObserveInvocation(mode, layout string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.invocations.WithLabelValues(mode, layout).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// ObserveOperator records one operator firing.
func (c *Collector) ObserveOperator(name string) {
	if c == nil {
		return
	}
	c.operators.WithLabelValues(name).Inc()
}

// ObserveFailure records one rejected record.
func (c *Collector) ObserveFailure(reason string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(reason).Inc()
}

// Handler returns an HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
