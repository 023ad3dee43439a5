// Package api exposes the building queries over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/bdnb-api/internal/model"
	"github.com/sells-group/bdnb-api/internal/observability"
	"github.com/sells-group/bdnb-api/internal/project"
)

// Querier runs building queries. *building.Service satisfies it.
type Querier interface {
	ByBBox(ctx context.Context, bbox model.BBox, mode project.Mode) (*geojson.FeatureCollection, error)
	ByAddress(ctx context.Context, address string, radiusMeters int, mode project.Mode) (*geojson.FeatureCollection, error)
}

// Config configures the HTTP layer.
type Config struct {
	// AllowedOrigins lists the CORS origins; empty allows any origin.
	AllowedOrigins []string
}

// Handler serves the building query API.
type Handler struct {
	svc Querier
}

// NewRouter builds the HTTP routes. gatherer backs /metrics; nil uses the
// default Prometheus registry.
func NewRouter(svc Querier, cfg Config, m *observability.Metrics, gatherer prometheus.Gatherer) http.Handler {
	if m == nil {
		m = observability.NewMetrics(nil)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(m))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", h.root)
	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/getbbox", h.getBBox)
	r.Get("/getaddress", h.getAddress)

	return r
}
