// Package engine composes identity resolution, ticket validation, and trip
// lifecycle into the ingest pipeline. It owns the ordering between the
// stages; each stage stays independently testable behind its own package.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanjeevantech/bustrack/internal/engine/metrics"
	"github.com/sanjeevantech/bustrack/internal/resolver"
	"github.com/sanjeevantech/bustrack/internal/schedule"
	"github.com/sanjeevantech/bustrack/internal/ticket"
	"github.com/sanjeevantech/bustrack/internal/trip/models"
	tripservice "github.com/sanjeevantech/bustrack/internal/trip/service"
	"github.com/sanjeevantech/bustrack/internal/trip/tracker"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// Outcome classifies what one ingested event did to trip state.
type Outcome string

const (
	OutcomeBoarded   Outcome = "boarded"
	OutcomeAlighted  Outcome = "alighted"
	OutcomeDuplicate Outcome = "ignored_duplicate"
	OutcomeUnknown   Outcome = "unknown_face"
	OutcomeRejected  Outcome = "rejected"
)

// Result is the ingest verdict returned to transports. Rejections carry the
// reason; boardings carry the ticket status the manifest recorded. Code is
// the structured taxonomy member for the dashboard's audit display; Reason
// is the terse human-readable form devices echo.
type Result struct {
	Outcome      Outcome         `json:"outcome"`
	TripID       id.TripID       `json:"trip_id,omitempty"`
	PassengerKey id.PassengerKey `json:"passenger_key,omitempty"`
	Confidence   float64         `json:"confidence,omitempty"`
	TicketStatus ticket.Status   `json:"ticket_status,omitempty"`
	Fare         *float64        `json:"fare,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Code         dErrors.Code    `json:"code,omitempty"`
}

// RouteSource supplies route definitions, used for the ticket-required flag.
type RouteSource interface {
	Route(ctx context.Context, routeID id.RouteID) (*schedule.Route, error)
}

// Engine is the correlation pipeline facade.
type Engine struct {
	resolver *resolver.Resolver
	tickets  *ticket.Validator
	trips    *tripservice.Service
	routes   RouteSource

	ticketRequiredDefault bool

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTicketRequiredDefault sets the policy for routes that do not carry an
// explicit ticket-required flag.
func WithTicketRequiredDefault(required bool) Option {
	return func(e *Engine) {
		e.ticketRequiredDefault = required
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New constructs an Engine over the three pipeline stages.
func New(res *resolver.Resolver, tickets *ticket.Validator, trips *tripservice.Service, routes RouteSource, opts ...Option) *Engine {
	e := &Engine{
		resolver: res,
		tickets:  tickets,
		trips:    trips,
		routes:   routes,
		logger:   slog.Default(),
		tracer:   otel.Tracer("bustrack/engine"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest runs one face-detection event through the pipeline: resolve the
// identity, validate the ticket, and apply the boarding or alighting to the
// vehicle's active trip. Any progress hint on the event is applied once the
// event is admitted, before the boarding decision, so the boarding lands on
// the right stop. A rejected event leaves trip state untouched, hint
// included.
func (e *Engine) Ingest(ctx context.Context, ev resolver.Event) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Ingest",
		trace.WithAttributes(
			attribute.String("vehicle_id", ev.VehicleID.String()),
			attribute.String("direction", string(ev.Direction)),
		),
	)
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.ObserveIngestLatency(time.Since(start)) }()

	if ev.Timestamp.IsZero() || ev.Timestamp.Year() < 2020 {
		// Pre-NTP board clocks. The resolver makes the same substitution for
		// its watermark; doing it here keeps boarding and arrival records off
		// the epoch too.
		ev.Timestamp = e.clock()
	}

	outcome, err := e.resolver.Resolve(ctx, ev)
	if err != nil {
		return Result{}, err
	}
	if outcome.Kind != resolver.KindRejected {
		// A stale or malformed event must not move route progress either;
		// only admitted reports carry trustworthy hints.
		e.applyProgressHint(ctx, ev)
	}

	var res Result
	switch outcome.Kind {
	case resolver.KindRejected:
		res = Result{Outcome: OutcomeRejected, Reason: outcome.Reason, Code: outcome.Code}
	case resolver.KindDuplicate:
		res = Result{
			Outcome:      OutcomeDuplicate,
			PassengerKey: outcome.PassengerKey,
			Confidence:   outcome.Confidence,
		}
	case resolver.KindUnknown:
		e.noteUnknown(ctx, ev.VehicleID)
		res = Result{Outcome: OutcomeUnknown, Code: outcome.Code}
	case resolver.KindResolved:
		res, err = e.apply(ctx, ev, outcome)
		if err != nil {
			return Result{}, err
		}
	default:
		return Result{}, dErrors.New(dErrors.CodeInternal, "unhandled resolution kind")
	}

	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	e.metrics.IncrementOutcome(string(res.Outcome), string(ev.Direction))
	return res, nil
}

// apply lands a resolved identity on the active trip. Failures that mean the
// event did not take effect release the dedup slot so a retry after the
// condition clears is not suppressed as a duplicate.
func (e *Engine) apply(ctx context.Context, ev resolver.Event, outcome resolver.Outcome) (Result, error) {
	key := outcome.PassengerKey

	if ev.Direction == resolver.DirectionExit {
		trip, record, err := e.trips.Alight(ctx, ev.VehicleID, key, ev.Timestamp)
		if err != nil {
			e.resolver.Unrecord(ctx, ev.VehicleID, key, ev.Direction)
			if rejection, ok := tripRejection(err); ok {
				return rejection, nil
			}
			return Result{}, err
		}
		res := Result{
			Outcome:      OutcomeAlighted,
			TripID:       trip.ID,
			PassengerKey: key,
			Confidence:   outcome.Confidence,
		}
		if record != nil {
			res.TicketStatus = record.TicketStatus
			res.Fare = record.Fare
		}
		return res, nil
	}

	trip, err := e.trips.CurrentByVehicle(ctx, ev.VehicleID)
	if err != nil {
		e.resolver.Unrecord(ctx, ev.VehicleID, key, ev.Direction)
		if rejection, ok := tripRejection(err); ok {
			return rejection, nil
		}
		return Result{}, err
	}

	status, err := e.tickets.Validate(ctx, key, trip.RouteID, ev.Timestamp)
	if err != nil {
		e.resolver.Unrecord(ctx, ev.VehicleID, key, ev.Direction)
		if dErrors.HasCode(err, dErrors.CodeUnknownPassenger) {
			// The face model resolved a key the directory has never enrolled.
			// Surfaced for audit rather than boarded as a ticketless rider.
			e.logger.Warn("resolved key missing from the passenger directory",
				"trip_id", trip.ID,
				"passenger_key", key,
			)
			return Result{
				Outcome:      OutcomeRejected,
				TripID:       trip.ID,
				PassengerKey: key,
				Confidence:   outcome.Confidence,
				Reason:       "passenger not enrolled",
				Code:         dErrors.CodeUnknownPassenger,
			}, nil
		}
		return Result{}, err
	}

	if status.BlocksBoarding() && e.ticketRequired(ctx, trip.RouteID) {
		e.resolver.Unrecord(ctx, ev.VehicleID, key, ev.Direction)
		e.logger.Info("boarding refused on ticket-required route",
			"trip_id", trip.ID,
			"passenger_key", key,
			"ticket_status", status,
		)
		return Result{
			Outcome:      OutcomeRejected,
			TripID:       trip.ID,
			PassengerKey: key,
			TicketStatus: status,
			Reason:       "ticket " + string(status),
			Code:         ticketCode(status),
		}, nil
	}

	trip, _, err = e.trips.Board(ctx, ev.VehicleID, key, status, outcome.Confidence, ev.Timestamp)
	if err != nil {
		e.resolver.Unrecord(ctx, ev.VehicleID, key, ev.Direction)
		if rejection, ok := tripRejection(err); ok {
			return rejection, nil
		}
		return Result{}, err
	}
	return Result{
		Outcome:      OutcomeBoarded,
		TripID:       trip.ID,
		PassengerKey: key,
		Confidence:   outcome.Confidence,
		TicketStatus: status,
	}, nil
}

// tripRejection maps trip lifecycle errors to their rejection results. A
// boarding against an ended trip stays distinguishable from one against a
// vehicle that never had a trip; the audit trail cares which it was.
func tripRejection(err error) (Result, bool) {
	switch {
	case dErrors.HasCode(err, dErrors.CodeTripEnded):
		return Result{Outcome: OutcomeRejected, Reason: "trip ended", Code: dErrors.CodeTripEnded}, true
	case dErrors.HasCode(err, dErrors.CodeNoActiveTrip):
		return Result{Outcome: OutcomeRejected, Reason: "no active trip", Code: dErrors.CodeNoActiveTrip}, true
	}
	return Result{}, false
}

// ticketCode maps a blocking ticket status to its taxonomy code.
func ticketCode(status ticket.Status) dErrors.Code {
	switch status {
	case ticket.StatusExpired:
		return dErrors.CodeTicketExpired
	case ticket.StatusNotEligible:
		return dErrors.CodeTicketIneligible
	default:
		return dErrors.CodeNoTicket
	}
}

// applyProgressHint feeds any stop or GPS hint on the event to the tracker.
// Progress failures never block the boarding decision.
func (e *Engine) applyProgressHint(ctx context.Context, ev resolver.Event) {
	if ev.StopHint == nil && ev.Location == nil {
		return
	}
	hint := tracker.Hint{StopSeq: ev.StopHint, Location: ev.Location, At: ev.Timestamp}
	if _, _, err := e.trips.RecordProgress(ctx, ev.VehicleID, hint); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNoActiveTrip) {
			e.logger.Warn("progress hint not applied",
				"vehicle_id", ev.VehicleID,
				"error", err,
			)
		}
	}
}

// noteUnknown records an unmatched sighting for audit, best effort.
func (e *Engine) noteUnknown(ctx context.Context, vehicleID id.VehicleID) {
	e.metrics.IncrementUnknownSightings()
	if err := e.trips.NoteUnknownSighting(ctx, vehicleID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNoActiveTrip) {
			e.logger.Warn("failed to record unknown sighting",
				"vehicle_id", vehicleID,
				"error", err,
			)
		}
	}
}

// ticketRequired resolves the route's ticket policy, falling back to the
// configured default when the route does not say.
func (e *Engine) ticketRequired(ctx context.Context, routeID id.RouteID) bool {
	route, err := e.routes.Route(ctx, routeID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			e.logger.Error("route lookup failed, using ticket policy default",
				"route_id", routeID,
				"error", err,
			)
		}
		return e.ticketRequiredDefault
	}
	if route.TicketRequired != nil {
		return *route.TicketRequired
	}
	return e.ticketRequiredDefault
}

// StartTrip begins a trip for the vehicle on the route.
func (e *Engine) StartTrip(ctx context.Context, routeID id.RouteID, vehicleID id.VehicleID) (*models.Trip, error) {
	return e.trips.Start(ctx, routeID, vehicleID)
}

// EndTrip closes the trip and returns the frozen manifest.
func (e *Engine) EndTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	return e.trips.End(ctx, tripID)
}

// CurrentTripByVehicle returns the vehicle's active trip.
func (e *Engine) CurrentTripByVehicle(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error) {
	return e.trips.CurrentByVehicle(ctx, vehicleID)
}

// CurrentTripByRoute returns the newest active trip on the route.
func (e *Engine) CurrentTripByRoute(ctx context.Context, routeID id.RouteID) (*models.Trip, error) {
	return e.trips.CurrentByRoute(ctx, routeID)
}

// TripHistory lists recent trips, newest first.
func (e *Engine) TripHistory(ctx context.Context, limit int) ([]*models.Trip, error) {
	return e.trips.History(ctx, limit)
}
