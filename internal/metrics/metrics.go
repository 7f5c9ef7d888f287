// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons reported on depthwatch_records_skipped_total.
const (
	ReasonMalformed = "malformed"
	ReasonFiltered  = "filtered"
)

// Metrics holds the engine collectors. A nil *Metrics records nothing, so
// components can run without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	processed   *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	cursor      *prometheus.GaugeVec
	emitted     *prometheus.CounterVec
	emitErrors  *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthwatch_records_processed_total",
			Help: "Log records dispatched through the pipeline.",
		}, []string{"stream"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthwatch_records_skipped_total",
			Help: "Log records skipped, by reason.",
		}, []string{"stream", "reason"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthwatch_fetch_errors_total",
			Help: "Failed reads from the log store.",
		}, []string{"stream"}),
		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "depthwatch_cursor_position",
			Help: "Index of the next unread record per stream.",
		}, []string{"stream"}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthwatch_events_emitted_total",
			Help: "Events handed to the sink, by kind.",
		}, []string{"stream", "kind"}),
		emitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depthwatch_emit_errors_total",
			Help: "Events the sink failed to accept.",
		}, []string{"stream"}),
	}
	m.registry.MustRegister(
		m.processed, m.skipped, m.fetchErrors, m.cursor, m.emitted, m.emitErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordProcessed(stream string) {
	if m != nil {
		m.processed.WithLabelValues(stream).Inc()
	}
}

func (m *Metrics) RecordSkipped(stream, reason string) {
	if m != nil {
		m.skipped.WithLabelValues(stream, reason).Inc()
	}
}

func (m *Metrics) FetchFailed(stream string) {
	if m != nil {
		m.fetchErrors.WithLabelValues(stream).Inc()
	}
}

func (m *Metrics) SetCursor(stream string, pos int64) {
	if m != nil {
		m.cursor.WithLabelValues(stream).Set(float64(pos))
	}
}

func (m *Metrics) EventEmitted(stream, kind string) {
	if m != nil {
		m.emitted.WithLabelValues(stream, kind).Inc()
	}
}

func (m *Metrics) EmitFailed(stream string) {
	if m != nil {
		m.emitErrors.WithLabelValues(stream).Inc()
	}
}
