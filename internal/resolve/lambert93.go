package resolve

import (
	"math"

	"github.com/rotisserie/eris"
)

// EPSG codes handled by NewTransformer.
const (
	EPSGWGS84     = 4326
	EPSGLambert93 = 2154
)

// ErrReprojection is returned when a transform between two CRS cannot be built.
var ErrReprojection = eris.New("unsupported reprojection")

// Transformer maps a point between two coordinate reference systems.
// Geographic input is (latitude, longitude). Transforms from EPSG:4326 into
// a store CRS return the store's (x, y) order: (easting, northing) for
// EPSG:2154 and (longitude, latitude) for EPSG:4326, as GeoPackage, PostGIS
// and shapefile geometries store them. The Lambert-93 inverse returns
// (latitude, longitude).
type Transformer interface {
	Transform(a, b float64) (float64, float64, error)
}

// NewTransformer returns the transform from one EPSG code to another.
func NewTransformer(from, to int) (Transformer, error) {
	switch {
	case from == EPSGWGS84 && to == EPSGWGS84:
		return wgs84XY{}, nil
	case from == to:
		return identity{}, nil
	case from == EPSGWGS84 && to == EPSGLambert93:
		return lambert93Forward{p: newLambert93()}, nil
	case from == EPSGLambert93 && to == EPSGWGS84:
		return lambert93Inverse{p: newLambert93()}, nil
	default:
		return nil, eris.Wrapf(ErrReprojection, "epsg:%d to epsg:%d", from, to)
	}
}

type identity struct{}

func (identity) Transform(a, b float64) (float64, float64, error) { return a, b, nil }

// wgs84XY swaps geographic coordinates into x = longitude, y = latitude.
type wgs84XY struct{}

func (wgs84XY) Transform(lat, lon float64) (float64, float64, error) { return lon, lat, nil }

// lcc holds the constants of a Lambert conformal conic projection with two
// standard parallels on an ellipsoid.
type lcc struct {
	a, e   float64
	n, f   float64
	rho0   float64
	lon0   float64
	x0, y0 float64
}

// newLambert93 builds the RGF93 / Lambert-93 projection (GRS80 ellipsoid,
// standard parallels 44°N and 49°N, origin 46°30'N 3°E). RGF93 and WGS84
// are treated as identical datums.
func newLambert93() *lcc {
	const (
		a    = 6378137.0
		invF = 298.257222101
		lat1 = 44.0
		lat2 = 49.0
		lat0 = 46.5
		lon0 = 3.0
	)
	fl := 1 / invF
	e := math.Sqrt(2*fl - fl*fl)

	phi1, phi2, phi0 := rad(lat1), rad(lat2), rad(lat0)
	m1, m2 := lccM(phi1, e), lccM(phi2, e)
	t1, t2, t0 := lccT(phi1, e), lccT(phi2, e), lccT(phi0, e)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f := m1 / (n * math.Pow(t1, n))

	return &lcc{
		a:    a,
		e:    e,
		n:    n,
		f:    f,
		rho0: a * f * math.Pow(t0, n),
		lon0: rad(lon0),
		x0:   700000,
		y0:   6600000,
	}
}

func (p *lcc) forward(lat, lon float64) (x, y float64, err error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) >= 90 {
		return 0, 0, eris.Errorf("resolve: latitude %g out of projection domain", lat)
	}
	phi := rad(lat)
	rho := p.a * p.f * math.Pow(lccT(phi, p.e), p.n)
	theta := p.n * (rad(lon) - p.lon0)
	return p.x0 + rho*math.Sin(theta), p.y0 + p.rho0 - rho*math.Cos(theta), nil
}

func (p *lcc) inverse(x, y float64) (lat, lon float64, err error) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, eris.New("resolve: coordinates must be numbers")
	}
	dx := x - p.x0
	dy := p.rho0 - (y - p.y0)
	rho := math.Copysign(math.Hypot(dx, dy), p.n)
	theta := math.Atan2(dx, dy)
	t := math.Pow(rho/(p.a*p.f), 1/p.n)

	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 20; i++ {
		es := p.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), p.e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return deg(phi), deg(theta/p.n + p.lon0), nil
}

type lambert93Forward struct{ p *lcc }

func (t lambert93Forward) Transform(lat, lon float64) (float64, float64, error) {
	return t.p.forward(lat, lon)
}

type lambert93Inverse struct{ p *lcc }

func (t lambert93Inverse) Transform(x, y float64) (float64, float64, error) {
	return t.p.inverse(x, y)
}

func lccM(phi, e float64) float64 {
	s := e * math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-s*s)
}

func lccT(phi, e float64) float64 {
	s := e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-s)/(1+s), e/2)
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }
