// Package store provides read-only, bbox-filtered access to the BDNB
// building dataset. Three backends are supported: a GeoPackage file (the
// export format of the dataset), a PostGIS table and an ESRI shapefile.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/bdnb-api/internal/model"
)

// ErrUnavailable is wrapped by every error caused by an unreachable or
// corrupt backing dataset.
var ErrUnavailable = eris.New("store unavailable")

// Supported drivers.
const (
	DriverGeoPackage = "gpkg"
	DriverPostGIS    = "postgis"
	DriverShapefile  = "shapefile"
)

// Store is a read-only building dataset.
type Store interface {
	// FetchByBBox returns every record whose geometry bounding box
	// intersects bbox, reading only the given attribute columns. An empty
	// intersection yields an empty slice and no error.
	FetchByBBox(ctx context.Context, bbox model.BBox, columns []model.Column) ([]model.BuildingRecord, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string

	// Path is the GeoPackage or shapefile location.
	Path string
	// Layer is the GeoPackage feature table; empty picks the first one.
	Layer string

	// DSN, Table and GeometryColumn configure the PostGIS backend.
	DSN            string
	Table          string
	GeometryColumn string
	SRID           int
	MaxConns       int32

	// FieldAliases maps BDNB column names to shapefile DBF field names,
	// which are limited to ten characters.
	FieldAliases map[string]string
}

// Open opens the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverGeoPackage, "geopackage":
		return OpenGeoPackage(ctx, cfg.Path, cfg.Layer)
	case DriverPostGIS, "postgres":
		return NewPostGIS(ctx, cfg)
	case DriverShapefile, "shp":
		return OpenShapefile(cfg.Path, cfg.FieldAliases)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// checkColumns rejects geometry and unknown column names.
func checkColumns(columns []model.Column) error {
	for _, c := range columns {
		if !model.IsAttribute(c) {
			return eris.Errorf("store: unknown column %q", c)
		}
	}
	return nil
}

// buildRecord assembles a record from a decoded geometry and the raw values
// of columns, in order. Values that do not convert are left missing.
func buildRecord(g geom.T, columns []model.Column, values []any) model.BuildingRecord {
	r := model.BuildingRecord{Geometry: g}
	for i, c := range columns {
		if i >= len(values) {
			break
		}
		_ = r.Set(c, values[i])
	}
	return r
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
