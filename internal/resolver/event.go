// Package resolver turns raw face-detection reports into passenger
// identities. It owns the only cross-event shared state besides the trips
// themselves: the per-device watermark and the boarding dedup cache.
package resolver

import (
	"time"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/geo"
)

// Direction distinguishes front-door and rear-door cameras. Entry reports
// drive boarding, exit reports drive alighting.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// IsValid reports whether the direction is a supported value.
func (d Direction) IsValid() bool {
	return d == DirectionEntry || d == DirectionExit
}

// Match is the embedding-match result delivered by the external face model.
type Match struct {
	PassengerKey id.PassengerKey `json:"passenger_key"`
	Confidence   float64         `json:"confidence"`
}

// Event is one face-detection report from an onboard device. Ephemeral:
// created per report, consumed exactly once, never mutated.
type Event struct {
	DeviceID  id.DeviceID  `json:"device_id"`
	VehicleID id.VehicleID `json:"vehicle_id"`
	Timestamp time.Time    `json:"timestamp"`
	Direction Direction    `json:"direction"`
	// Match is nil when the model reported an unknown face.
	Match *Match `json:"match,omitempty"`
	// Location is the GPS fix at detection time, when the device had one.
	Location *geo.Point `json:"location,omitempty"`
	// StopHint carries an explicit stop sequence index when the device knows
	// it (checkpoint beacons). Nil means infer from Location.
	StopHint *int `json:"stop_hint,omitempty"`
}

// OutcomeKind tags the resolver result.
type OutcomeKind string

const (
	// KindResolved: the event maps to a passenger and should change state.
	KindResolved OutcomeKind = "resolved"
	// KindDuplicate: same passenger seen again inside the cooldown window.
	// Acknowledged, no state change.
	KindDuplicate OutcomeKind = "duplicate"
	// KindUnknown: no candidate, or confidence below threshold.
	KindUnknown OutcomeKind = "unknown"
	// KindRejected: the event must not be applied (stale replay etc.).
	KindRejected OutcomeKind = "rejected"
)

// Outcome is the resolver's tagged result for one event.
type Outcome struct {
	Kind         OutcomeKind
	PassengerKey id.PassengerKey
	Confidence   float64
	// Reason explains a rejection; empty otherwise.
	Reason string
	// Code is the taxonomy code behind a rejection or a low-confidence
	// unknown, carried through to the caller's structured result.
	Code dErrors.Code
}
