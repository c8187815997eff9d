package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sanjeevantech/bustrack/internal/trip/models"
	"github.com/sanjeevantech/bustrack/internal/trip/tracker"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/platform/httputil"
	"github.com/sanjeevantech/bustrack/pkg/requestcontext"
)

// Service defines the interface for trip lifecycle operations.
type Service interface {
	Start(ctx context.Context, routeID id.RouteID, vehicleID id.VehicleID) (*models.Trip, error)
	End(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	Find(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	CurrentByVehicle(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error)
	CurrentByRoute(ctx context.Context, routeID id.RouteID) (*models.Trip, error)
	History(ctx context.Context, limit int) ([]*models.Trip, error)
	RecordProgress(ctx context.Context, vehicleID id.VehicleID, hint tracker.Hint) (*models.Trip, tracker.Decision, error)
}

// Handler wires trip endpoints to the lifecycle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a trip handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts trip endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/trips/start", h.HandleStart)
	r.Post("/trips/progress", h.HandleProgress)
	r.Get("/trips/current", h.HandleCurrent)
	r.Get("/trips", h.HandleHistory)
	r.Post("/trips/{tripID}/end", h.HandleEnd)
	r.Get("/trips/{tripID}", h.HandleGet)
}

// HandleStart handles POST /trips/start requests.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[StartRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	trip, err := h.service.Start(ctx, req.ParsedRouteID(), req.ParsedVehicleID())
	if err != nil {
		h.logger.ErrorContext(ctx, "trip start failed",
			"request_id", requestID,
			"route_id", req.RouteID,
			"vehicle_id", req.VehicleID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTrip(trip, false))
}

// HandleEnd handles POST /trips/{tripID}/end requests.
func (h *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed trip ID"))
		return
	}

	trip, err := h.service.End(ctx, tripID)
	if err != nil {
		h.logger.ErrorContext(ctx, "trip end failed",
			"request_id", requestID,
			"trip_id", tripID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTrip(trip, true))
}

// HandleGet handles GET /trips/{tripID} requests, returning the trip in any
// state with its full manifest.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed trip ID"))
		return
	}

	trip, err := h.service.Find(ctx, tripID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTrip(trip, true))
}

// HandleCurrent handles GET /trips/current requests. Callers identify the
// trip by either vehicle_id or route_id.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		trip *models.Trip
		err  error
	)
	switch {
	case r.URL.Query().Get("vehicle_id") != "":
		vehicleID, perr := id.ParseVehicleID(r.URL.Query().Get("vehicle_id"))
		if perr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed vehicle_id"))
			return
		}
		trip, err = h.service.CurrentByVehicle(ctx, vehicleID)
	case r.URL.Query().Get("route_id") != "":
		routeID, perr := id.ParseRouteID(r.URL.Query().Get("route_id"))
		if perr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed route_id"))
			return
		}
		trip, err = h.service.CurrentByRoute(ctx, routeID)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "vehicle_id or route_id query parameter is required"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTrip(trip, true))
}

// HandleHistory handles GET /trips requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	trips, err := h.service.History(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"trips": FromTrips(trips)})
}

// HandleProgress handles POST /trips/progress requests.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ProgressRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	hint := tracker.Hint{StopSeq: req.StopSeq, Location: req.ParsedLocation()}
	trip, decision, err := h.service.RecordProgress(ctx, req.ParsedVehicleID(), hint)
	if err != nil {
		h.logger.ErrorContext(ctx, "progress update failed",
			"request_id", requestID,
			"vehicle_id", req.VehicleID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "progress recorded",
		"request_id", requestID,
		"vehicle_id", req.VehicleID,
		"action", decision.Action,
		"stop_seq", trip.CurrentStopSeq,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"action": decision.Action,
		"trip":   FromTrip(trip, false),
	})
}
