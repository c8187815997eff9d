package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sanjeevantech/bustrack/internal/trip/models"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// InMemoryStore keeps trips in memory. Snapshots in and out are deep copies
// so no caller shares mutable state with the store.
type InMemoryStore struct {
	mu    sync.RWMutex
	trips map[id.TripID]*models.Trip
}

// NewInMemoryStore creates an empty trip store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{trips: make(map[id.TripID]*models.Trip)}
}

// Create stores a new trip, rejecting a second active trip for the vehicle.
func (s *InMemoryStore) Create(ctx context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[trip.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.trips {
		if existing.VehicleID == trip.VehicleID && existing.State == models.StateActive {
			return sentinel.ErrConflict
		}
	}
	s.trips[trip.ID] = trip.Clone()
	return nil
}

// Update persists the full aggregate.
func (s *InMemoryStore) Update(ctx context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[trip.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.trips[trip.ID] = trip.Clone()
	return nil
}

// FindByID returns a snapshot of the trip.
func (s *InMemoryStore) FindByID(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trip, ok := s.trips[tripID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return trip.Clone(), nil
}

// FindActiveByVehicle returns the vehicle's active trip.
func (s *InMemoryStore) FindActiveByVehicle(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, trip := range s.trips {
		if trip.VehicleID == vehicleID && trip.State == models.StateActive {
			return trip.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindActiveByRoute returns the newest active trip on the route.
func (s *InMemoryStore) FindActiveByRoute(ctx context.Context, routeID id.RouteID) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *models.Trip
	for _, trip := range s.trips {
		if trip.RouteID != routeID || trip.State != models.StateActive {
			continue
		}
		if newest == nil || trip.StartedAt.After(newest.StartedAt) {
			newest = trip
		}
	}
	if newest == nil {
		return nil, sentinel.ErrNotFound
	}
	return newest.Clone(), nil
}

// Recent lists trips by start time descending.
func (s *InMemoryStore) Recent(ctx context.Context, limit int) ([]*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Trip, 0, len(s.trips))
	for _, trip := range s.trips {
		all = append(all, trip)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*models.Trip, len(all))
	for i, trip := range all {
		out[i] = trip.Clone()
	}
	return out, nil
}
