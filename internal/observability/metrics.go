// Package observability holds the Prometheus metrics of the query API.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bdnb_api"

// Geocoding outcomes.
const (
	OutcomeMatched  = "matched"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the Prometheus counters and histograms of the API.
type Metrics struct {
	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec   // labels: route, status
	HTTPDuration *prometheus.HistogramVec // labels: route

	// Query metrics.
	QueryFeatures      *prometheus.HistogramVec // labels: query={bbox,address}
	StoreFetchDuration prometheus.Histogram
	StoreErrors        prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={matched,not_found,error}
}

// NewMetrics creates the API metrics and registers them with reg. A nil reg
// leaves them unregistered, which lets tests build as many as they need.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		QueryFeatures: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_features",
			Help:      "Number of features returned per query.",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"query"}),
		StoreFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_fetch_duration_seconds",
			Help:      "Duration of a bbox fetch against the building store.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed bbox fetches.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Address resolutions by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequests,
			m.HTTPDuration,
			m.QueryFeatures,
			m.StoreFetchDuration,
			m.StoreErrors,
			m.GeocodeRequests,
		)
	}
	return m
}
