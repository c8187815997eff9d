// Package service is the trip lifecycle manager: the single writer and the
// single termination authority for Trip aggregates. All mutations of one
// vehicle's trip run under that vehicle's lock, which gives per-trip
// serialization without a global bottleneck.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sanjeevantech/bustrack/internal/schedule"
	"github.com/sanjeevantech/bustrack/internal/ticket"
	"github.com/sanjeevantech/bustrack/internal/trip/metrics"
	"github.com/sanjeevantech/bustrack/internal/trip/models"
	"github.com/sanjeevantech/bustrack/internal/trip/store"
	"github.com/sanjeevantech/bustrack/internal/trip/tracker"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// RouteSource supplies route definitions for progress tracking.
type RouteSource interface {
	Route(ctx context.Context, routeID id.RouteID) (*schedule.Route, error)
}

// FareCalculator prices a journey between two stop sequences of a route.
type FareCalculator interface {
	Journey(route *schedule.Route, boardSeq, alightSeq int) float64
}

// EventPublisher receives lifecycle events for live dashboards. Publishing
// is best effort; failures are logged and never fail the operation.
type EventPublisher interface {
	TripStarted(ctx context.Context, trip *models.Trip)
	TripEnded(ctx context.Context, trip *models.Trip)
	PassengerBoarded(ctx context.Context, trip *models.Trip, boarding *models.Boarding)
	PassengerAlighted(ctx context.Context, trip *models.Trip, boarding *models.Boarding)
	StopReached(ctx context.Context, trip *models.Trip, arrival models.StopArrival)
}

// Service orchestrates trip lifecycle, boarding, and route progress.
type Service struct {
	trips   store.Store
	routes  RouteSource
	tracker *tracker.Tracker
	fares   FareCalculator
	timeout time.Duration
	logger  *slog.Logger
	clock   func() time.Time
	metrics *metrics.Metrics
	events  EventPublisher

	mu    sync.Mutex
	locks map[id.VehicleID]*sync.Mutex
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithFareCalculator(f FareCalculator) Option {
	return func(s *Service) {
		s.fares = f
	}
}

// New constructs a Service. inactivityTimeout is how long a trip may sit
// without any boarding, alighting, or progress signal before the lazy
// auto-end safeguard closes it.
func New(trips store.Store, routes RouteSource, trk *tracker.Tracker, inactivityTimeout time.Duration, opts ...Option) *Service {
	s := &Service{
		trips:   trips,
		routes:  routes,
		tracker: trk,
		timeout: inactivityTimeout,
		logger:  slog.Default(),
		clock:   time.Now,
		locks:   map[id.VehicleID]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockFor returns the mutex serializing all mutations for one vehicle.
func (s *Service) lockFor(vehicleID id.VehicleID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[vehicleID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[vehicleID] = l
	}
	return l
}

// Start begins a trip for the vehicle on the route. Starting is idempotent:
// a second start for the same vehicle and route returns the running trip.
// A start while a trip on a different route is active is a conflict.
func (s *Service) Start(ctx context.Context, routeID id.RouteID, vehicleID id.VehicleID) (*models.Trip, error) {
	if _, err := s.routes.Route(ctx, routeID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "route not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load route")
	}

	lock := s.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.trips.FindActiveByVehicle(ctx, vehicleID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active trip")
	}
	if existing != nil {
		if ended := s.maybeAutoEnd(ctx, existing); !ended {
			if existing.RouteID == routeID {
				return existing, nil
			}
			return nil, dErrors.New(dErrors.CodeTripAlreadyActive, "vehicle already has an active trip on another route")
		}
	}

	trip := models.NewTrip(routeID, vehicleID, s.clock())
	if err := s.trips.Create(ctx, trip); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeTripAlreadyActive, "vehicle already has an active trip")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create trip")
	}

	s.logger.Info("trip started",
		"trip_id", trip.ID,
		"route_id", routeID,
		"vehicle_id", vehicleID,
	)
	s.metrics.IncrementTripsStarted()
	if s.events != nil {
		s.events.TripStarted(ctx, trip)
	}
	return trip, nil
}

// End closes the trip explicitly and returns the frozen manifest. Ending is
// idempotent: an already ended trip comes back unchanged with its original
// end reason.
func (s *Service) End(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	probe, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "trip not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trip")
	}

	lock := s.lockFor(probe.VehicleID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock; the probe may be stale.
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trip")
	}
	if trip.State == models.StateEnded {
		return trip, nil
	}
	if err := s.finalize(ctx, trip, models.EndReasonExplicit); err != nil {
		return nil, err
	}
	return trip, nil
}

// Board records a passenger boarding on the vehicle's active trip. The bool
// reports whether the manifest grew; a repeat sighting of an onboard
// passenger returns false.
func (s *Service) Board(ctx context.Context, vehicleID id.VehicleID, key id.PassengerKey, status ticket.Status, confidence float64, at time.Time) (*models.Trip, bool, error) {
	lock := s.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	trip, err := s.activeTrip(ctx, vehicleID)
	if err != nil {
		return nil, false, err
	}

	added, err := trip.Board(key, status, confidence, at)
	if err != nil {
		return nil, false, dErrors.New(dErrors.CodeTripEnded, "trip has ended")
	}
	if err := s.trips.Update(ctx, trip); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist boarding")
	}

	if added {
		s.logger.Info("passenger boarded",
			"trip_id", trip.ID,
			"passenger_key", key,
			"ticket_status", status,
			"stop_seq", trip.CurrentStopSeq,
		)
		s.metrics.IncrementBoardings(string(status))
		if s.events != nil {
			s.events.PassengerBoarded(ctx, trip, trip.Boardings[key])
		}
	}
	return trip, added, nil
}

// Alight records a passenger leaving the vehicle and prices the journey for
// passengers travelling without a valid season ticket. A passenger the trip
// never saw board is a no-op.
func (s *Service) Alight(ctx context.Context, vehicleID id.VehicleID, key id.PassengerKey, at time.Time) (*models.Trip, *models.Boarding, error) {
	lock := s.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	trip, err := s.activeTrip(ctx, vehicleID)
	if err != nil {
		return nil, nil, err
	}

	removed, record, err := trip.Alight(key, at)
	if err != nil {
		return nil, nil, dErrors.New(dErrors.CodeTripEnded, "trip has ended")
	}
	if !removed {
		return trip, nil, nil
	}

	if s.fares != nil && record.TicketStatus.BlocksBoarding() {
		route, rerr := s.routes.Route(ctx, trip.RouteID)
		if rerr != nil {
			s.logger.Error("route lookup failed, fare not priced",
				"trip_id", trip.ID,
				"route_id", trip.RouteID,
				"error", rerr,
			)
		} else {
			fare := s.fares.Journey(route, record.BoardedSeq, *record.AlightedSeq)
			record.Fare = &fare
		}
	}

	if err := s.trips.Update(ctx, trip); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist alighting")
	}

	s.logger.Info("passenger alighted",
		"trip_id", trip.ID,
		"passenger_key", key,
		"stop_seq", trip.CurrentStopSeq,
	)
	s.metrics.IncrementAlightings()
	if s.events != nil {
		s.events.PassengerAlighted(ctx, trip, record)
	}
	return trip, record, nil
}

// RecordProgress feeds a stop or location hint through the tracker and
// applies the decision to the vehicle's active trip.
func (s *Service) RecordProgress(ctx context.Context, vehicleID id.VehicleID, hint tracker.Hint) (*models.Trip, tracker.Decision, error) {
	lock := s.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	trip, err := s.activeTrip(ctx, vehicleID)
	if err != nil {
		return nil, tracker.Decision{}, err
	}

	route, err := s.routes.Route(ctx, trip.RouteID)
	if err != nil {
		return nil, tracker.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load route")
	}

	if hint.At.IsZero() {
		hint.At = s.clock()
	}
	decision := s.tracker.Evaluate(route, trip.CurrentStopSeq, hint)
	if decision.Action != tracker.ActionAdvance {
		return trip, decision, nil
	}

	arrival := models.StopArrival{
		Sequence:  decision.Stop.Sequence,
		StopName:  decision.Stop.Name,
		At:        hint.At,
		MissedGap: decision.MissedGap,
	}
	if err := trip.RecordArrival(arrival); err != nil {
		return nil, decision, dErrors.Wrap(err, dErrors.CodeConflict, "arrival rejected")
	}
	if decision.FinalStop {
		trip.AutoEndEligible = true
		s.logger.Info("final stop reached, trip eligible for auto end",
			"trip_id", trip.ID,
			"route_id", trip.RouteID,
		)
	}
	if err := s.trips.Update(ctx, trip); err != nil {
		return nil, decision, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist progress")
	}

	s.metrics.AddMissedStops(decision.MissedGap)
	if s.events != nil {
		s.events.StopReached(ctx, trip, arrival)
	}
	return trip, decision, nil
}

// CurrentByVehicle returns the vehicle's active trip, applying the lazy
// inactivity safeguard first.
func (s *Service) CurrentByVehicle(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error) {
	lock := s.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()
	return s.activeTrip(ctx, vehicleID)
}

// CurrentByRoute returns the newest active trip on the route, applying the
// lazy inactivity safeguard first.
func (s *Service) CurrentByRoute(ctx context.Context, routeID id.RouteID) (*models.Trip, error) {
	trip, err := s.trips.FindActiveByRoute(ctx, routeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNoActiveTrip, "no active trip on route")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trip")
	}

	lock := s.lockFor(trip.VehicleID)
	lock.Lock()
	defer lock.Unlock()
	return s.activeTrip(ctx, trip.VehicleID)
}

// Find returns a trip by ID in whatever state it is in.
func (s *Service) Find(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "trip not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trip")
	}
	return trip, nil
}

// History lists recent trips, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*models.Trip, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	trips, err := s.trips.Recent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trips")
	}
	return trips, nil
}

// activeTrip loads the vehicle's active trip under the caller-held vehicle
// lock and applies the lazy inactivity auto-end before handing it back.
func (s *Service) activeTrip(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error) {
	trip, err := s.trips.FindActiveByVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNoActiveTrip, "no active trip for vehicle")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trip")
	}
	if s.maybeAutoEnd(ctx, trip) {
		return nil, dErrors.New(dErrors.CodeNoActiveTrip, "no active trip for vehicle")
	}
	return trip, nil
}

// maybeAutoEnd closes the trip with the timeout reason when it has been idle
// past the configured window. Returns true when the trip was ended. Must run
// under the vehicle lock.
func (s *Service) maybeAutoEnd(ctx context.Context, trip *models.Trip) bool {
	if !trip.IdleSince(s.clock(), s.timeout) {
		return false
	}
	if err := s.finalize(ctx, trip, models.EndReasonTimeout); err != nil {
		s.logger.Error("inactivity auto end failed",
			"trip_id", trip.ID,
			"error", err,
		)
		return false
	}
	return true
}

// finalize ends the trip, persists it, and fans out telemetry. Must run
// under the vehicle lock with an active trip.
func (s *Service) finalize(ctx context.Context, trip *models.Trip, reason models.EndReason) error {
	now := s.clock()
	trip.End(reason, now)
	if err := s.trips.Update(ctx, trip); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist trip end")
	}

	s.logger.Info("trip ended",
		"trip_id", trip.ID,
		"route_id", trip.RouteID,
		"vehicle_id", trip.VehicleID,
		"reason", reason,
		"boardings", trip.BoardingCount,
		"unknown_sightings", trip.UnknownCount,
	)
	s.metrics.IncrementTripsEnded(string(reason))
	s.metrics.ObserveTripDuration(now.Sub(trip.StartedAt))
	if s.events != nil {
		s.events.TripEnded(ctx, trip)
	}
	return nil
}

// NoteUnknownSighting bumps the trip's unmatched sighting counter for audit.
func (s *Service) NoteUnknownSighting(ctx context.Context, vehicleID id.VehicleID) error {
	lock := s.lockFor(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	trip, err := s.activeTrip(ctx, vehicleID)
	if err != nil {
		return err
	}
	trip.UnknownCount++
	if err := s.trips.Update(ctx, trip); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist sighting count")
	}
	return nil
}
