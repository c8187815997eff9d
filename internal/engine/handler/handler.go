package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sanjeevantech/bustrack/internal/engine"
	"github.com/sanjeevantech/bustrack/internal/resolver"
	"github.com/sanjeevantech/bustrack/pkg/platform/httputil"
	"github.com/sanjeevantech/bustrack/pkg/requestcontext"
)

// Service defines the interface for the ingest pipeline.
type Service interface {
	Ingest(ctx context.Context, ev resolver.Event) (engine.Result, error)
}

// Handler wires the ingest endpoint to the pipeline.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an ingest handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts ingest endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ingest", h.HandleIngest)
}

// HandleIngest handles POST /ingest requests. Every accepted event returns
// 200 with its outcome; rejection is an outcome, not an HTTP error, so
// devices never retry events that were processed and refused.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[IngestRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	result, err := h.service.Ingest(ctx, req.ParsedEvent())
	if err != nil {
		h.logger.ErrorContext(ctx, "event ingest failed",
			"request_id", requestID,
			"vehicle_id", req.VehicleID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "event ingested",
		"request_id", requestID,
		"vehicle_id", req.VehicleID,
		"direction", req.Direction,
		"outcome", result.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}
