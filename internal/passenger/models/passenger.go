// Package models defines the enrolled passenger directory records. The core
// never mutates these; enrollment and face-signature management are owned by
// the external matching collaborator.
package models

import (
	"time"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// Passenger is one enrolled rider.
type Passenger struct {
	Key         id.PassengerKey
	DisplayName string
	// FaceSignatureRef points at the enrolled embedding owned by the
	// matching collaborator. Opaque here.
	FaceSignatureRef string
	CreatedAt        time.Time
}

// SeasonTicket is a time-bounded, optionally route-scoped fare authorization.
// A passenger has at most one active ticket at a time.
type SeasonTicket struct {
	PassengerKey id.PassengerKey
	ValidFrom    time.Time
	ValidTo      time.Time
	// EligibleRoutes restricts the ticket to specific routes. An empty set
	// means the ticket is valid on all routes; see ticket.Validator for the
	// policy note.
	EligibleRoutes []id.RouteID
}

// Validate checks the ticket's structural invariant.
func (t SeasonTicket) Validate() error {
	if t.ValidTo.Before(t.ValidFrom) {
		return errInvalidWindow
	}
	return nil
}

// CoversRoute reports whether the ticket is usable on the given route.
// An empty eligible set allows every route.
func (t SeasonTicket) CoversRoute(routeID id.RouteID) bool {
	if len(t.EligibleRoutes) == 0 {
		return true
	}
	for _, r := range t.EligibleRoutes {
		if r == routeID {
			return true
		}
	}
	return false
}

// WithinWindow reports whether at falls inside the validity window,
// inclusive at both ends.
func (t SeasonTicket) WithinWindow(at time.Time) bool {
	return !at.Before(t.ValidFrom) && !at.After(t.ValidTo)
}
