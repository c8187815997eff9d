package schedule

import (
	"context"
	"time"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// Provider is the read-only schedule lookup surface. Implementations return
// sentinel.ErrNotFound for unknown routes.
type Provider interface {
	Route(ctx context.Context, routeID id.RouteID) (*Route, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// NearDeparture reports whether at falls within tolerance of any scheduled
// departure, and if so which one. Used by the dashboard to show
// "waiting for departure" when no trip is active.
func NearDeparture(snap *Snapshot, at time.Time, tolerance time.Duration) (Departure, bool) {
	for _, dep := range snap.Departures {
		t, err := time.Parse("15:04", dep.TimeOfDay)
		if err != nil {
			continue
		}
		depMinutes := t.Hour()*60 + t.Minute()
		nowMinutes := at.Hour()*60 + at.Minute()
		diff := depMinutes - nowMinutes
		if diff < 0 {
			diff = -diff
		}
		// Wrap around midnight.
		if wrapped := 24*60 - diff; wrapped < diff {
			diff = wrapped
		}
		if time.Duration(diff)*time.Minute <= tolerance {
			return dep, true
		}
	}
	return Departure{}, false
}
