package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bdnb-api/internal/building"
	"github.com/sells-group/bdnb-api/internal/config"
	"github.com/sells-group/bdnb-api/internal/observability"
	"github.com/sells-group/bdnb-api/internal/resolve"
	"github.com/sells-group/bdnb-api/internal/store"
	"github.com/sells-group/bdnb-api/pkg/geocode"
)

// queryEnv holds the store, service and metrics needed by the serve and
// query commands.
type queryEnv struct {
	Store    store.Store
	Service  *building.Service
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
}

// Close releases resources held by the query environment.
func (qe *queryEnv) Close() {
	if qe.Store != nil {
		_ = qe.Store.Close()
	}
}

// initQueryEnv opens the store and builds the geocoder, resolver and
// service. Callers should defer env.Close().
func initQueryEnv(ctx context.Context, mode string) (*queryEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	srid := cfg.Store.SRID
	if srid == 0 {
		srid = resolve.EPSGLambert93
	}
	transform, err := resolve.NewTransformer(resolve.EPSGWGS84, srid)
	if err != nil {
		return nil, eris.Wrap(err, "init resolver")
	}

	st, err := store.Open(ctx, storeConfig(cfg.Store))
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	var resolver building.Resolver
	if gc := buildGeocoder(cfg.Geocode); len(gc.Providers()) > 0 {
		resolver = resolve.New(gc, transform, resolve.WithTimeout(cfg.Geocode.Timeout()))
		zap.L().Info("address queries enabled", zap.Strings("providers", gc.Providers()))
	} else {
		zap.L().Warn("no geocoding provider configured, address queries are disabled")
	}

	svc := building.NewService(st, resolver, building.Config{StoreTimeout: cfg.Store.Timeout()}, metrics)

	return &queryEnv{
		Store:    st,
		Service:  svc,
		Metrics:  metrics,
		Registry: reg,
	}, nil
}

// storeConfig maps the store settings onto store.Config.
func storeConfig(c config.StoreConfig) store.Config {
	return store.Config{
		Driver:         c.Driver,
		Path:           c.Path,
		Layer:          c.Layer,
		DSN:            c.DatabaseURL,
		Table:          c.Table,
		GeometryColumn: c.GeometryColumn,
		SRID:           c.SRID,
		MaxConns:       c.MaxConns,
		FieldAliases:   c.FieldAliases,
	}
}

// buildGeocoder creates the provider cascade in configured order. The
// providers share one HTTP transport.
func buildGeocoder(c config.GeocodeConfig) *geocode.CascadeClient {
	hc := &http.Client{Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}}
	options := func(baseURL string, rps float64) []geocode.Option {
		return []geocode.Option{
			geocode.WithHTTPClient(hc),
			geocode.WithTimeout(c.Timeout()),
			geocode.WithUserAgent(c.UserAgent),
			geocode.WithBaseURL(baseURL),
			geocode.WithRateLimit(rps),
			geocode.WithRetry(c.MaxAttempts),
		}
	}

	var providers []geocode.Provider
	for _, name := range c.Providers {
		switch name {
		case "nominatim":
			providers = append(providers, geocode.NewNominatimProvider(options(c.NominatimURL, c.NominatimRPS)...))
		case "ban":
			providers = append(providers, geocode.NewBANProvider(c.BANMinScore, options(c.BANURL, c.BANRPS)...))
		}
	}
	return geocode.NewCascadeClient(providers...)
}
