package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trip module.
type Metrics struct {
	// Trips started and ended, ended broken down by reason
	TripsStarted prometheus.Counter
	TripsEnded   *prometheus.CounterVec

	// Boardings and alightings by ticket status
	Boardings  *prometheus.CounterVec
	Alightings prometheus.Counter

	// Missed stop gaps observed while tracking route progress
	MissedStops prometheus.Counter

	// Duration of completed trips
	TripDuration prometheus.Histogram
}

// New creates a new Metrics instance with all trip module metrics registered.
func New() *Metrics {
	return &Metrics{
		TripsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_trips_started_total",
			Help: "Total trips started",
		}),
		TripsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bustrack_trips_ended_total",
			Help: "Total trips ended by reason",
		}, []string{"reason"}), // reason: "explicit", "timeout"
		Boardings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bustrack_boardings_total",
			Help: "Total boardings recorded by ticket status",
		}, []string{"ticket_status"}),
		Alightings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_alightings_total",
			Help: "Total alightings recorded",
		}),
		MissedStops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_missed_stops_total",
			Help: "Total stops skipped in route progress without an arrival signal",
		}),
		TripDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bustrack_trip_duration_seconds",
			Help:    "Duration of completed trips",
			Buckets: []float64{300, 600, 1200, 1800, 2700, 3600, 5400, 7200},
		}),
	}
}

// IncrementTripsStarted records a started trip.
func (m *Metrics) IncrementTripsStarted() {
	if m != nil {
		m.TripsStarted.Inc()
	}
}

// IncrementTripsEnded records a trip end with its reason.
func (m *Metrics) IncrementTripsEnded(reason string) {
	if m != nil {
		m.TripsEnded.WithLabelValues(reason).Inc()
	}
}

// IncrementBoardings records a boarding with its ticket status.
func (m *Metrics) IncrementBoardings(ticketStatus string) {
	if m != nil {
		m.Boardings.WithLabelValues(ticketStatus).Inc()
	}
}

// IncrementAlightings records an alighting.
func (m *Metrics) IncrementAlightings() {
	if m != nil {
		m.Alightings.Inc()
	}
}

// AddMissedStops records stops skipped without an arrival signal.
func (m *Metrics) AddMissedStops(n int) {
	if m != nil && n > 0 {
		m.MissedStops.Add(float64(n))
	}
}

// ObserveTripDuration records the wall clock length of a completed trip.
func (m *Metrics) ObserveTripDuration(d time.Duration) {
	if m != nil {
		m.TripDuration.Observe(d.Seconds())
	}
}
