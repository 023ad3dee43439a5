// Package resolve turns a free-text address and a search radius into a
// bounding box in the store's projected CRS (Lambert-93).
package resolve

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bdnb-api/internal/model"
	"github.com/sells-group/bdnb-api/pkg/geocode"
)

// Resolution errors.
var (
	ErrGeocodeNotFound = eris.New("address not found")
	ErrInvalidRadius   = eris.New("invalid radius")
)

// Small-angle conversion factors, in kilometres per degree.
const (
	kmPerDegreeLat = 110.574
	kmPerDegreeLon = 111.320
)

// GeoBox is a geographic extent in WGS84 degrees.
type GeoBox struct {
	LatMin, LonMin float64
	LatMax, LonMax float64
}

// DegreeBox builds the geographic box of radiusMeters around (lat, lon).
// Each axis gets its own degree offset; the conversion is planar and degrades
// for large radii.
func DegreeBox(lat, lon float64, radiusMeters int) GeoBox {
	km := float64(radiusMeters) / 1000
	dLat := km / kmPerDegreeLat
	dLon := km / (kmPerDegreeLon * math.Cos(rad(lat)))
	return GeoBox{
		LatMin: lat - dLat,
		LonMin: lon - dLon,
		LatMax: lat + dLat,
		LonMax: lon + dLon,
	}
}

// Resolver geocodes addresses and projects the surrounding box.
type Resolver struct {
	geocoder  geocode.Client
	transform Transformer
	timeout   time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each geocoding call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// New creates a Resolver. transform must map EPSG:4326 (lat, lon) to the
// store CRS; see NewTransformer.
func New(g geocode.Client, transform Transformer, opts ...Option) *Resolver {
	r := &Resolver{geocoder: g, transform: transform}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve geocodes address and returns the projected box of radiusMeters
// around it.
func (r *Resolver) Resolve(ctx context.Context, address string, radiusMeters int) (model.BBox, error) {
	if radiusMeters <= 0 {
		return model.BBox{}, eris.Wrapf(ErrInvalidRadius, "radius %d must be positive", radiusMeters)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return model.BBox{}, eris.Wrap(ErrGeocodeNotFound, "empty address")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.geocoder.Geocode(ctx, address)
	if err != nil {
		return model.BBox{}, eris.Wrapf(err, "resolve: geocode %q", address)
	}
	if res == nil || !res.Matched {
		return model.BBox{}, eris.Wrapf(ErrGeocodeNotFound, "address %q", address)
	}

	zap.L().Debug("resolve: geocoded address",
		zap.String("address", address),
		zap.String("source", res.Source),
		zap.Float64("lat", res.Latitude),
		zap.Float64("lon", res.Longitude),
	)

	return r.Extent(res.Latitude, res.Longitude, radiusMeters)
}

// Extent projects the degree box of radiusMeters around (lat, lon). The min
// corner maps to (XMin, YMin) and the max corner to (XMax, YMax).
func (r *Resolver) Extent(lat, lon float64, radiusMeters int) (model.BBox, error) {
	box := DegreeBox(lat, lon, radiusMeters)

	xMin, yMin, err := r.transform.Transform(box.LatMin, box.LonMin)
	if err != nil {
		return model.BBox{}, eris.Wrap(err, "resolve: project min corner")
	}
	xMax, yMax, err := r.transform.Transform(box.LatMax, box.LonMax)
	if err != nil {
		return model.BBox{}, eris.Wrap(err, "resolve: project max corner")
	}

	bbox := model.BBox{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax}
	if err := bbox.Validate(); err != nil {
		return model.BBox{}, eris.Wrap(err, "resolve: projected extent")
	}
	return bbox, nil
}
