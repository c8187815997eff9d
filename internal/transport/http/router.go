// Package httptransport assembles the HTTP surface: router, shared
// middleware, and the health endpoint. Module handlers register their own
// routes; business logic never lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sanjeevantech/bustrack/pkg/platform/httputil"
)

// Registrar is implemented by module handlers that mount their own routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency. Name appears in the health response.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// NewRouter builds the router with shared middleware and mounts every
// registrar.
func NewRouter(logger *slog.Logger, checks []HealthCheck, registrars ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(clientMetadataMiddleware)
	r.Use(recovererMiddleware(logger))

	r.Get("/healthz", healthHandler(logger, checks))

	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}

// healthHandler reports per-dependency status. The endpoint stays 200 unless
// a probe fails, so orchestrators restart only on real trouble.
func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				logger.WarnContext(ctx, "health probe failed",
					"dependency", c.Name,
					"error", err,
				)
				deps[c.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[c.Name] = "up"
		}

		httputil.WriteJSON(w, status, map[string]any{
			"status":       statusWord(status),
			"dependencies": deps,
			"timestamp":    time.Now().UTC(),
		})
	}
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
