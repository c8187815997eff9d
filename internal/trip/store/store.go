// Package store persists Trip aggregates. The lifecycle service is the only
// writer; reads outside it get deep-copied snapshots.
package store

import (
	"context"

	"github.com/sanjeevantech/bustrack/internal/trip/models"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// Store is the trip persistence surface. Implementations return
// sentinel.ErrNotFound for missing trips and sentinel.ErrConflict when a
// Create collides with an existing active trip for the same vehicle.
type Store interface {
	Create(ctx context.Context, trip *models.Trip) error
	// Update persists the full aggregate. Trips are small (one vehicle's
	// passengers), so whole-aggregate writes beat fine-grained deltas.
	Update(ctx context.Context, trip *models.Trip) error
	FindByID(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	// FindActiveByVehicle returns the vehicle's active trip, if any.
	FindActiveByVehicle(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error)
	// FindActiveByRoute returns the newest active trip on the route, if any.
	FindActiveByRoute(ctx context.Context, routeID id.RouteID) (*models.Trip, error)
	// Recent lists trips ordered by start time descending.
	Recent(ctx context.Context, limit int) ([]*models.Trip, error)
}
