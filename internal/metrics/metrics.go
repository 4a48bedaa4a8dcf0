// Package metrics collects Prometheus metrics for catalog calls and
// enrichment outcomes. A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookmeta"

// Call outcomes recorded for every source request.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Collector holds all metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	sourceRequests *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	outcomes       *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

// New creates a collector with a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sourceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_requests_total",
				Help:      "Total number of catalog requests by source, operation and outcome",
			},
			[]string{"source", "operation", "outcome"},
		),
		sourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_request_duration_seconds",
				Help:      "Catalog request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source", "operation"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_outcomes_total",
				Help:      "Total number of enrichments by terminal state",
			},
			[]string{"state"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_breaker_state",
				Help:      "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
			},
			[]string{"source"},
		),
	}

	c.registry.MustRegister(c.sourceRequests, c.sourceDuration, c.outcomes, c.breakerState)
	return c
}

// Registry returns the registry the metrics are registered on, e.g. for
// prometheus.WriteToTextfile.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveSourceCall records one catalog request.
func (c *Collector) ObserveSourceCall(source, operation, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.sourceRequests.WithLabelValues(source, operation, outcome).Inc()
	c.sourceDuration.WithLabelValues(source, operation).Observe(took.Seconds())
}

// RecordOutcome counts a terminal enrichment state.
func (c *Collector) RecordOutcome(state string) {
	if c == nil {
		return
	}
	c.outcomes.WithLabelValues(state).Inc()
}

// SetBreakerState records the numeric breaker state of a source.
func (c *Collector) SetBreakerState(source string, state int) {
	if c == nil {
		return
	}
	c.breakerState.WithLabelValues(source).Set(float64(state))
}
