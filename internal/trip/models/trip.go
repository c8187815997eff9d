// Package models defines the Trip aggregate and its state machine. All
// mutation happens through the lifecycle service under a per-trip lock; the
// types here enforce the transition and ordering invariants.
package models

import (
	"time"

	"github.com/sanjeevantech/bustrack/internal/ticket"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// State is the trip lifecycle state. Transitions are monotone:
// idle → active → ended, no reversal.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateEnded  State = "ended"
)

// EndReason records how a trip ended, kept distinct for downstream auditing.
type EndReason string

const (
	EndReasonNone EndReason = ""
	// EndReasonExplicit: an operator or device sent the end command.
	EndReasonExplicit EndReason = "explicit"
	// EndReasonTimeout: the inactivity safeguard fired.
	EndReasonTimeout EndReason = "timeout"
)

// StopArrival is one recorded stop along the route. Arrivals are strictly
// ordered by sequence and non-decreasing by timestamp.
type StopArrival struct {
	Sequence int       `json:"sequence"`
	StopName string    `json:"stop_name"`
	At       time.Time `json:"at"`
	// MissedGap counts stops skipped since the previous arrival, flagged for
	// observability rather than rejected.
	MissedGap int `json:"missed_gap,omitempty"`
}

// Boarding is one passenger's presence on the trip.
type Boarding struct {
	PassengerKey id.PassengerKey `json:"passenger_key"`
	TicketStatus ticket.Status   `json:"ticket_status"`
	Confidence   float64         `json:"confidence"`
	BoardedAt    time.Time       `json:"boarded_at"`
	BoardedSeq   int             `json:"boarded_seq"`
	// AlightedAt is nil while the passenger is onboard.
	AlightedAt  *time.Time `json:"alighted_at,omitempty"`
	AlightedSeq *int       `json:"alighted_seq,omitempty"`
	// Fare is set at alighting for passengers without a valid season ticket.
	Fare *float64 `json:"fare,omitempty"`
}

// Trip is one vehicle's operating session on a route. Owned exclusively by
// the lifecycle service; the tracker and validator read and append through
// it.
type Trip struct {
	ID        id.TripID    `json:"trip_id"`
	RouteID   id.RouteID   `json:"route_id"`
	VehicleID id.VehicleID `json:"vehicle_id"`

	State     State      `json:"state"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	EndReason EndReason  `json:"end_reason,omitempty"`

	// CurrentStopSeq is the latest confirmed stop sequence, -1 before the
	// first arrival.
	CurrentStopSeq int           `json:"current_stop_seq"`
	StopArrivals   []StopArrival `json:"stop_arrivals"`
	// AutoEndEligible is raised when the tracker confirms the final stop.
	// The tracker never ends the trip itself; termination authority stays
	// with the lifecycle service.
	AutoEndEligible bool `json:"auto_end_eligible"`

	// Boardings holds every boarding for the trip, keyed by passenger. A
	// passenger appears at most once; the onboard set is the subset with a
	// nil AlightedAt.
	Boardings map[id.PassengerKey]*Boarding `json:"boardings"`
	// BoardingCount is cumulative and monotone within the trip.
	BoardingCount int `json:"boarding_count"`
	// UnknownCount tallies detections that never resolved to a passenger,
	// kept for the dashboard audit view.
	UnknownCount int `json:"unknown_count"`

	// LastActivityAt drives the inactivity auto-end safeguard.
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewTrip creates an active trip. Trips are born active: the start command
// is the idle→active transition and there is nothing to observe between the
// two states.
func NewTrip(routeID id.RouteID, vehicleID id.VehicleID, at time.Time) *Trip {
	return &Trip{
		ID:             id.NewTripID(),
		RouteID:        routeID,
		VehicleID:      vehicleID,
		State:          StateActive,
		StartedAt:      at,
		CurrentStopSeq: -1,
		Boardings:      make(map[id.PassengerKey]*Boarding),
		LastActivityAt: at,
	}
}

// Onboard returns the passenger keys currently on the vehicle.
func (t *Trip) Onboard() []id.PassengerKey {
	keys := make([]id.PassengerKey, 0, len(t.Boardings))
	for key, b := range t.Boardings {
		if b.AlightedAt == nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// IsOnboard reports whether the passenger is currently on the vehicle.
func (t *Trip) IsOnboard(key id.PassengerKey) bool {
	b, ok := t.Boardings[key]
	return ok && b.AlightedAt == nil
}

// Board adds the passenger to the onboard set. Idempotent: a passenger
// already onboard leaves the boarding count untouched. A passenger who
// alighted earlier in the trip re-boards under the original record (the
// alighting is cleared, the count is not incremented again) so the manifest
// holds each passenger at most once.
func (t *Trip) Board(key id.PassengerKey, status ticket.Status, confidence float64, at time.Time) (added bool, err error) {
	if t.State != StateActive {
		return false, sentinel.ErrInvalidState
	}
	if existing, ok := t.Boardings[key]; ok {
		if existing.AlightedAt != nil {
			existing.AlightedAt = nil
			existing.AlightedSeq = nil
			existing.Fare = nil
		}
		t.touch(at)
		return false, nil
	}
	t.Boardings[key] = &Boarding{
		PassengerKey: key,
		TicketStatus: status,
		Confidence:   confidence,
		BoardedAt:    at,
		BoardedSeq:   t.CurrentStopSeq,
	}
	t.BoardingCount++
	t.touch(at)
	return true, nil
}

// Alight marks the passenger as off the vehicle. A passenger not onboard is
// a no-op, not an error: rear-door cameras routinely catch people who
// boarded before the trip started.
func (t *Trip) Alight(key id.PassengerKey, at time.Time) (removed bool, record *Boarding, err error) {
	if t.State != StateActive {
		return false, nil, sentinel.ErrInvalidState
	}
	b, ok := t.Boardings[key]
	if !ok || b.AlightedAt != nil {
		return false, nil, nil
	}
	b.AlightedAt = &at
	seq := t.CurrentStopSeq
	b.AlightedSeq = &seq
	t.touch(at)
	return true, b, nil
}

// RecordArrival appends a stop arrival. The caller (tracker decision inside
// the lifecycle service) guarantees monotone sequence; this method enforces
// it as a final guard.
func (t *Trip) RecordArrival(arrival StopArrival) error {
	if t.State != StateActive {
		return sentinel.ErrInvalidState
	}
	if arrival.Sequence <= t.CurrentStopSeq {
		return sentinel.ErrConflict
	}
	if n := len(t.StopArrivals); n > 0 && arrival.At.Before(t.StopArrivals[n-1].At) {
		arrival.At = t.StopArrivals[n-1].At
	}
	t.StopArrivals = append(t.StopArrivals, arrival)
	t.CurrentStopSeq = arrival.Sequence
	t.touch(arrival.At)
	return nil
}

// End transitions the trip to ended and freezes the manifest. Idempotent:
// ending an ended trip is a no-op. The first reason wins.
func (t *Trip) End(reason EndReason, at time.Time) {
	if t.State == StateEnded {
		return
	}
	t.State = StateEnded
	t.EndedAt = &at
	t.EndReason = reason
}

// IdleSince reports whether the trip has seen no activity for longer than
// the timeout as of now.
func (t *Trip) IdleSince(now time.Time, timeout time.Duration) bool {
	return t.State == StateActive && now.Sub(t.LastActivityAt) > timeout
}

func (t *Trip) touch(at time.Time) {
	if at.After(t.LastActivityAt) {
		t.LastActivityAt = at
	}
}

// Clone returns a deep copy for read snapshots, so callers can't mutate the
// aggregate outside the service lock.
func (t *Trip) Clone() *Trip {
	cp := *t
	cp.StopArrivals = append([]StopArrival(nil), t.StopArrivals...)
	cp.Boardings = make(map[id.PassengerKey]*Boarding, len(t.Boardings))
	for k, b := range t.Boardings {
		bc := *b
		if b.AlightedAt != nil {
			at := *b.AlightedAt
			bc.AlightedAt = &at
		}
		if b.AlightedSeq != nil {
			seq := *b.AlightedSeq
			bc.AlightedSeq = &seq
		}
		if b.Fare != nil {
			f := *b.Fare
			bc.Fare = &f
		}
		cp.Boardings[k] = &bc
	}
	if t.EndedAt != nil {
		at := *t.EndedAt
		cp.EndedAt = &at
	}
	return &cp
}
