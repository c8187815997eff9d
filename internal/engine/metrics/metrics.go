package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ingest pipeline.
type Metrics struct {
	// Ingest outcomes by kind and direction
	IngestOutcome *prometheus.CounterVec

	// Overall ingest latency including resolution and ticket lookup
	IngestLatency prometheus.Histogram

	// Unmatched face sightings, kept separate from outcomes for audit
	UnknownSightings prometheus.Counter
}

// New creates a new Metrics instance with all ingest pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		IngestOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bustrack_ingest_outcomes_total",
			Help: "Total ingest outcomes by kind and direction",
		}, []string{"outcome", "direction"}),

		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bustrack_ingest_duration_seconds",
			Help:    "Duration of full event ingestion including identity resolution and ticket lookup",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		UnknownSightings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_unknown_sightings_total",
			Help: "Total face sightings that resolved to no known passenger",
		}),
	}
}

// IncrementOutcome records one ingest outcome.
func (m *Metrics) IncrementOutcome(outcome, direction string) {
	if m != nil {
		m.IngestOutcome.WithLabelValues(outcome, direction).Inc()
	}
}

// ObserveIngestLatency records the total ingest duration.
func (m *Metrics) ObserveIngestLatency(d time.Duration) {
	if m != nil {
		m.IngestLatency.Observe(d.Seconds())
	}
}

// IncrementUnknownSightings records an unmatched face sighting.
func (m *Metrics) IncrementUnknownSightings() {
	if m != nil {
		m.UnknownSightings.Inc()
	}
}
