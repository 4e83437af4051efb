// Package metrics exposes scheduler activity as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	r := runner.New(steps, newWorld, runner.WithMetrics(m))
//
// Every method is safe on a nil *Collector, so the scheduler can call them unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "stepflow"
	subsystem = "scheduler"
)

// Collector holds the scheduler metrics registered on one registry.
type Collector struct {
	scenarios *prometheus.CounterVec
	attempts  prometheus.Counter
	retries   prometheus.Counter
	steps     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  *prometheus.GaugeVec
	buffered  prometheus.Gauge
	blocked   prometheus.Counter
}

// New creates the collector and registers it on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		scenarios: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scenarios_total",
			Help:      "Scenarios that reached a terminal outcome, by outcome",
		}, []string{"outcome"}),
		attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts_total",
			Help:      "Scenario execution attempts, retries included",
		}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retries_total",
			Help:      "Scenario attempts that were retries",
		}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "steps_total",
			Help:      "Executed or skipped steps, by status",
		}, []string{"status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time from admission to terminal outcome",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"outcome"}),
		inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scenarios_in_flight",
			Help:      "Scenarios currently admitted and not yet finished, by type",
		}, []string{"type"}),
		buffered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reorder_buffered_batches",
			Help:      "Finished scenarios waiting for an earlier scenario before being reported",
		}),
		blocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "admission_backpressure_total",
			Help:      "Times admission paused because the reorder buffer reached its watermark",
		}),
	}
}

// ScenarioStarted increments the in-flight gauge for the scenario type.
func (c *Collector) ScenarioStarted(scenarioType string) {
	if c == nil {
		return
	}
	c.inFlight.WithLabelValues(scenarioType).Inc()
}

// ScenarioFinished records a terminal outcome and its duration.
func (c *Collector) ScenarioFinished(scenarioType, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.inFlight.WithLabelValues(scenarioType).Dec()
	c.scenarios.WithLabelValues(outcome).Inc()
	c.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Attempt records one execution attempt. attempt is 1-based.
func (c *Collector) Attempt(attempt int) {
	if c == nil {
		return
	}
	c.attempts.Inc()
	if attempt > 1 {
		c.retries.Inc()
	}
}

// Step records a step result.
func (c *Collector) Step(status string) {
	if c == nil {
		return
	}
	c.steps.WithLabelValues(status).Inc()
}

// Buffered sets the number of batches held by the reorder buffer.
func (c *Collector) Buffered(n int) {
	if c == nil {
		return
	}
	c.buffered.Set(float64(n))
}

// Backpressure counts one admission pause.
func (c *Collector) Backpressure() {
	if c == nil {
		return
	}
	c.blocked.Inc()
}
