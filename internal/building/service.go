// Package building answers the two building queries: by bounding box and by
// address plus radius.
package building

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/bdnb-api/internal/model"
	"github.com/sells-group/bdnb-api/internal/observability"
	"github.com/sells-group/bdnb-api/internal/project"
	"github.com/sells-group/bdnb-api/internal/resolve"
)

// ErrAddressDisabled is returned by ByAddress when no resolver is configured.
var ErrAddressDisabled = eris.New("address queries are disabled")

// ErrTimeout is returned when geocoding or the store read runs past its
// deadline.
var ErrTimeout = eris.New("query timed out")

// Fetcher reads building records intersecting a bbox. store.Store satisfies it.
type Fetcher interface {
	FetchByBBox(ctx context.Context, bbox model.BBox, columns []model.Column) ([]model.BuildingRecord, error)
}

// Resolver converts an address and radius into a projected bbox.
// *resolve.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, address string, radiusMeters int) (model.BBox, error)
}

// Config holds the service settings.
type Config struct {
	// StoreTimeout bounds each store read. Zero disables the bound.
	StoreTimeout time.Duration
}

// Service runs queries against one store. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	store    Fetcher
	resolver Resolver
	cfg      Config
	metrics  *observability.Metrics
}

// NewService creates a Service. resolver may be nil to disable address
// queries; a nil m records to unregistered metrics.
func NewService(store Fetcher, resolver Resolver, cfg Config, m *observability.Metrics) *Service {
	if m == nil {
		m = observability.NewMetrics(nil)
	}
	return &Service{store: store, resolver: resolver, cfg: cfg, metrics: m}
}

// ByBBox returns the buildings intersecting bbox, projected to mode.
func (s *Service) ByBBox(ctx context.Context, bbox model.BBox, mode project.Mode) (*geojson.FeatureCollection, error) {
	return s.query(ctx, "bbox", bbox, mode)
}

// ByAddress resolves address and radius to a bbox and runs the bbox query.
func (s *Service) ByAddress(ctx context.Context, address string, radiusMeters int, mode project.Mode) (*geojson.FeatureCollection, error) {
	if s.resolver == nil {
		return nil, ErrAddressDisabled
	}

	bbox, err := s.resolver.Resolve(ctx, address, radiusMeters)
	switch {
	case err == nil:
		s.metrics.GeocodeRequests.WithLabelValues(observability.OutcomeMatched).Inc()
	case eris.Is(err, resolve.ErrInvalidRadius):
		return nil, err
	case eris.Is(err, resolve.ErrGeocodeNotFound):
		s.metrics.GeocodeRequests.WithLabelValues(observability.OutcomeNotFound).Inc()
		return nil, err
	default:
		s.metrics.GeocodeRequests.WithLabelValues(observability.OutcomeError).Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, eris.Wrapf(ErrTimeout, "building: resolve address: %v", err)
		}
		return nil, eris.Wrap(err, "building: resolve address")
	}

	zap.L().Debug("building: resolved address",
		zap.String("address", address),
		zap.Int("radius", radiusMeters),
		zap.Any("bbox", bbox),
	)
	return s.query(ctx, "address", bbox, mode)
}

func (s *Service) query(ctx context.Context, kind string, bbox model.BBox, mode project.Mode) (*geojson.FeatureCollection, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}

	records, err := s.fetch(ctx, bbox, project.Columns(mode))
	if err != nil {
		return nil, err
	}

	fc := project.Project(records, mode)
	s.metrics.QueryFeatures.WithLabelValues(kind).Observe(float64(len(fc.Features)))
	return fc, nil
}

func (s *Service) fetch(ctx context.Context, bbox model.BBox, columns []model.Column) ([]model.BuildingRecord, error) {
	if s.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()
	}

	start := time.Now()
	records, err := s.store.FetchByBBox(ctx, bbox, columns)
	s.metrics.StoreFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.StoreErrors.Inc()
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, eris.Wrapf(ErrTimeout, "building: fetch: %v", err)
		}
		return nil, eris.Wrap(err, "building: fetch")
	}
	return records, nil
}
