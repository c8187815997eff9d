package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sanjeevantech/bustrack/internal/schedule"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/platform/httputil"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// Handler serves the schedule read surface. Devices pull the snapshot on
// boot; the dashboard pulls it to draw route maps.
type Handler struct {
	provider schedule.Provider
	logger   *slog.Logger
}

// New constructs a schedule handler with its dependencies.
func New(provider schedule.Provider, logger *slog.Logger) *Handler {
	return &Handler{provider: provider, logger: logger}
}

// Register mounts schedule endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/schedule", h.HandleSnapshot)
	r.Get("/routes/{routeID}", h.HandleRoute)
	r.Get("/departures/near", h.HandleNearDeparture)
}

// HandleSnapshot handles GET /schedule requests.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.provider.Snapshot(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "schedule snapshot failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// defaultDepartureTolerance matches the window within which a bus is
// expected to start reporting after its scheduled time.
const defaultDepartureTolerance = 15 * time.Minute

// HandleNearDeparture handles GET /departures/near requests. The dashboard
// calls it when a route has no active trip, to show "waiting for the HH:MM
// departure" instead of a bare empty state. at defaults to the server clock;
// within is the tolerance in minutes.
func (h *Handler) HandleNearDeparture(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed at timestamp"))
			return
		}
		at = parsed
	}

	tolerance := defaultDepartureTolerance
	if raw := r.URL.Query().Get("within"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "within must be a positive number of minutes"))
			return
		}
		tolerance = time.Duration(minutes) * time.Minute
	}

	snap, err := h.provider.Snapshot(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "schedule snapshot failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	dep, ok := schedule.NearDeparture(snap, at, tolerance)
	resp := map[string]any{"near": ok}
	if ok {
		resp["departure"] = dep
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRoute handles GET /routes/{routeID} requests.
func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	routeID, err := id.ParseRouteID(chi.URLParam(r, "routeID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed route ID"))
		return
	}

	route, err := h.provider.Route(r.Context(), routeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "route not found")
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, route)
}
