// Package schedule serves the read-only route, stop, and timing definitions
// the tracker consumes. The data is authored externally; this package only
// looks it up and answers proximity queries against it.
package schedule

import (
	"time"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/geo"
)

// Stop is one point on a route's ordered stop sequence. Sequence starts at 0
// and is strictly increasing along the route.
type Stop struct {
	Name     string    `json:"name"`
	Sequence int       `json:"sequence"`
	Location geo.Point `json:"location"`
}

// Route is a predefined ordered stop sequence.
type Route struct {
	ID    id.RouteID `json:"route_id"`
	Name  string     `json:"name"`
	Stops []Stop     `json:"stops"`
	// TicketRequired gates boarding on ticket validity for this route. Nil
	// defers to the global default.
	TicketRequired *bool `json:"ticket_required,omitempty"`
}

// FinalSequence returns the sequence index of the route's last stop, or -1
// for a route with no stops.
func (r Route) FinalSequence() int {
	if len(r.Stops) == 0 {
		return -1
	}
	return r.Stops[len(r.Stops)-1].Sequence
}

// NearestStop returns the stop closest to p and its distance in km. ok is
// false when the route has no stops or p carries no fix.
func (r Route) NearestStop(p geo.Point) (stop Stop, distKm float64, ok bool) {
	if len(r.Stops) == 0 || p.IsZero() {
		return Stop{}, 0, false
	}
	best := -1
	bestDist := 0.0
	for i, s := range r.Stops {
		d := geo.HaversineKm(p, s.Location)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return r.Stops[best], bestDist, true
}

// Departure is one scheduled run of a route.
type Departure struct {
	RouteID id.RouteID `json:"route_id"`
	// TimeOfDay is the local departure time in "15:04" form.
	TimeOfDay string `json:"time_of_day"`
	// EstimatedDuration is how long the run usually takes end to end.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Snapshot is the full schedule served to devices and the dashboard.
type Snapshot struct {
	Routes     []Route     `json:"routes"`
	Departures []Departure `json:"departures"`
}
