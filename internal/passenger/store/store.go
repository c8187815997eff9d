// Package store resolves passenger and season-ticket records. The directory
// is read-only to the tracker; writes happen in the enrollment system.
package store

import (
	"context"

	"github.com/sanjeevantech/bustrack/internal/passenger/models"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// Directory is the read-only lookup surface the correlation engine depends
// on. Implementations return sentinel.ErrNotFound for missing records and
// sentinel.ErrUnavailable when the backing store cannot be reached.
type Directory interface {
	// FindPassenger resolves a passenger by key.
	FindPassenger(ctx context.Context, key id.PassengerKey) (*models.Passenger, error)
	// ActiveTicket returns the passenger's season ticket, if any. A missing
	// ticket is ErrNotFound, which the validator maps to NoTicket.
	ActiveTicket(ctx context.Context, key id.PassengerKey) (*models.SeasonTicket, error)
}
