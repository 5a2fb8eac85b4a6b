package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hashfydr/void-CLI/internal/api/middleware"
)

// Pinger is a backend whose reachability /health reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the ops router serving /metrics and /health.
func NewRouter(logger zerolog.Logger, backends map[string]Pinger) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ReadOnly)
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", healthHandler(backends))

	return r
}
