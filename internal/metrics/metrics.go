// Package metrics exposes Prometheus collectors for the data-source and
// event-pipeline state a host process would want to scrape (SPEC_FULL.md's
// domain stack): data-source status transitions, outbox drops, and
// delivery outcomes.
//
// Grounded on ipiton-alert-history-service's promauto-registered
// CounterVec/Gauge/Histogram wiring pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors bundles every metric the pipeline reports. A nil *Collectors
// is safe to call methods on (no-op), so hosts that don't want metrics
// don't need to special-case wiring.
type Collectors struct {
	dataSourceState  *prometheus.GaugeVec
	dataSourceErrors *prometheus.CounterVec
	outboxDropsTotal prometheus.Counter
	eventsSentTotal  *prometheus.CounterVec
	deliveryOutcomes *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
}

// New registers a fresh set of collectors with reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		dataSourceState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flagkit_data_source_state",
			Help: "Current data-source state (1 for the active state, 0 otherwise) by state label.",
		}, []string{"state"}),
		dataSourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flagkit_data_source_errors_total",
			Help: "Total data-source errors observed, by error kind.",
		}, []string{"kind"}),
		outboxDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "flagkit_event_outbox_drops_total",
			Help: "Total events dropped because the outbox was full.",
		}),
		eventsSentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flagkit_events_sent_total",
			Help: "Total events handed to the dispatcher, by kind.",
		}, []string{"kind"}),
		deliveryOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flagkit_event_delivery_outcomes_total",
			Help: "Total event batch delivery attempts, by outcome.",
		}, []string{"outcome"}),
		deliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flagkit_event_delivery_duration_seconds",
			Help:    "Event batch delivery latency, from first attempt to final outcome.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// SetDataSourceState marks state as active and every other known state as
// inactive, so a single PromQL `== 1` selects the current state.
func (c *Collectors) SetDataSourceState(state string, allStates []string) {
	if c == nil {
		return
	}
	for _, s := range allStates {
		if s == state {
			c.dataSourceState.WithLabelValues(s).Set(1)
		} else {
			c.dataSourceState.WithLabelValues(s).Set(0)
		}
	}
}

func (c *Collectors) RecordDataSourceError(kind string) {
	if c == nil {
		return
	}
	c.dataSourceErrors.WithLabelValues(kind).Inc()
}

func (c *Collectors) RecordOutboxDrop() {
	if c == nil {
		return
	}
	c.outboxDropsTotal.Inc()
}

func (c *Collectors) RecordEventSent(kind string) {
	if c == nil {
		return
	}
	c.eventsSentTotal.WithLabelValues(kind).Inc()
}

func (c *Collectors) RecordDeliveryOutcome(outcome string, durationSeconds float64) {
	if c == nil {
		return
	}
	c.deliveryOutcomes.WithLabelValues(outcome).Inc()
	c.deliveryDuration.Observe(durationSeconds)
}
