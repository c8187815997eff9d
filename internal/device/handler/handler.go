package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sanjeevantech/bustrack/internal/device"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/platform/httputil"
	"github.com/sanjeevantech/bustrack/pkg/requestcontext"
)

// HeartbeatRequest is the HTTP request body for POST /devices/heartbeat.
type HeartbeatRequest struct {
	DeviceID  string `json:"device_id"`
	VehicleID string `json:"vehicle_id"`

	parsedDeviceID  id.DeviceID
	parsedVehicleID id.VehicleID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *HeartbeatRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	deviceID, err := id.ParseDeviceID(r.DeviceID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "device_id is required")
	}
	vehicleID, err := id.ParseVehicleID(r.VehicleID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "vehicle_id is required")
	}
	r.parsedDeviceID = deviceID
	r.parsedVehicleID = vehicleID
	return nil
}

// Handler wires device fleet endpoints to the registry.
type Handler struct {
	registry *device.Registry
	logger   *slog.Logger
}

// New constructs a device handler with its dependencies.
func New(registry *device.Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts device endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/devices/heartbeat", h.HandleHeartbeat)
	r.Get("/devices", h.HandleList)
}

// HandleHeartbeat handles POST /devices/heartbeat requests. The firmware
// identification comes from the User-Agent header, captured by middleware.
func (h *Handler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[HeartbeatRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	d := h.registry.Record(device.Heartbeat{
		DeviceID:  req.parsedDeviceID,
		VehicleID: req.parsedVehicleID,
		UserAgent: requestcontext.UserAgent(ctx),
		RemoteIP:  requestcontext.ClientIP(ctx),
	})
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleList handles GET /devices requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"devices": h.registry.List()})
}
