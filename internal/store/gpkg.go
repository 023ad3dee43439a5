package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bdnb-api/internal/model"
)

// GeoPackageStore reads features from a GeoPackage file opened read-only.
// The underlying *sql.DB is safe for concurrent readers.
type GeoPackageStore struct {
	db         *sql.DB
	path       string
	table      string
	geomColumn string
	pk         string
	rtree      string
}

// OpenGeoPackage opens the GeoPackage at path and resolves its feature
// layer. An empty layer selects the first feature table.
func OpenGeoPackage(ctx context.Context, path, layer string) (*GeoPackageStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "gpkg: resolve %s: %v", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "gpkg: stat %s: %v", path, err)
	}

	dsn := (&url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "gpkg: open %s: %v", path, err)
	}

	s := &GeoPackageStore{db: db, path: path}
	if err := s.discover(ctx, layer); err != nil {
		_ = db.Close()
		return nil, err
	}

	zap.L().Info("gpkg: opened dataset",
		zap.String("path", path),
		zap.String("table", s.table),
		zap.String("geometry", s.geomColumn),
		zap.Bool("rtree", s.rtree != ""),
	)
	return s, nil
}

func (s *GeoPackageStore) discover(ctx context.Context, layer string) error {
	q := `SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features' AND (? = '' OR c.table_name = ?)
		ORDER BY c.table_name
		LIMIT 1`
	var srsID int64
	err := s.db.QueryRowContext(ctx, q, layer, layer).Scan(&s.table, &s.geomColumn, &srsID)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrUnavailable, "gpkg: no feature layer %q in %s", layer, s.path)
	}
	if err != nil {
		return eris.Wrapf(ErrUnavailable, "gpkg: read metadata of %s: %v", s.path, err)
	}
	if srsID != 2154 {
		zap.L().Warn("gpkg: layer is not in Lambert-93", zap.String("table", s.table), zap.Int64("srs_id", srsID))
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT name FROM pragma_table_info(?) WHERE pk = 1`, s.table,
	).Scan(&s.pk)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.pk = "rowid"
	case err != nil:
		return eris.Wrapf(ErrUnavailable, "gpkg: read primary key of %s: %v", s.table, err)
	}

	rtree := "rtree_" + s.table + "_" + s.geomColumn
	var name string
	err = s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE name = ?`, rtree,
	).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		zap.L().Warn("gpkg: no spatial index, queries will scan the layer", zap.String("table", s.table))
	case err != nil:
		return eris.Wrapf(ErrUnavailable, "gpkg: look up spatial index: %v", err)
	default:
		s.rtree = name
	}
	return nil
}

// FetchByBBox implements Store.
func (s *GeoPackageStore) FetchByBBox(ctx context.Context, bbox model.BBox, columns []model.Column) ([]model.BuildingRecord, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if err := checkColumns(columns); err != nil {
		return nil, err
	}

	query, args := s.selectQuery(bbox, columns)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "gpkg: query")
		}
		return nil, eris.Wrapf(ErrUnavailable, "gpkg: query %s: %v", s.table, err)
	}
	defer rows.Close() //nolint:errcheck

	records := make([]model.BuildingRecord, 0)
	var skipped int
	for rows.Next() {
		raw := make([]any, len(columns)+1)
		dest := make([]any, len(raw))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(ErrUnavailable, "gpkg: scan %s: %v", s.table, err)
		}

		blob, _ := raw[0].([]byte)
		g, err := decodeGeoPackageGeometry(blob)
		if err != nil || g == nil {
			skipped++
			continue
		}
		if !bbox.Intersects(g) {
			continue
		}
		records = append(records, buildRecord(g, columns, raw[1:]))
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "gpkg: read rows")
		}
		return nil, eris.Wrapf(ErrUnavailable, "gpkg: read rows: %v", err)
	}

	if skipped > 0 {
		zap.L().Debug("gpkg: skipped undecodable geometries", zap.Int("skipped", skipped))
	}
	return records, nil
}

func (s *GeoPackageStore) selectQuery(bbox model.BBox, columns []model.Column) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT t.")
	b.WriteString(quoteIdent(s.geomColumn))
	for _, c := range columns {
		b.WriteString(", t.")
		b.WriteString(quoteIdent(string(c)))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(s.table))
	b.WriteString(" t")

	if s.rtree == "" {
		return b.String(), nil
	}

	b.WriteString(" JOIN ")
	b.WriteString(quoteIdent(s.rtree))
	b.WriteString(" r ON r.id = t.")
	b.WriteString(quoteIdent(s.pk))
	b.WriteString(" WHERE r.minx <= ? AND r.maxx >= ? AND r.miny <= ? AND r.maxy >= ?")
	return b.String(), []any{bbox.XMax, bbox.XMin, bbox.YMax, bbox.YMin}
}

// Close implements Store.
func (s *GeoPackageStore) Close() error {
	return s.db.Close()
}

// envelopeSizes maps the GeoPackage header envelope indicator to the size of
// the envelope in bytes.
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// decodeGeoPackageGeometry decodes a GeoPackage binary geometry: an eight
// byte header ("GP", version, flags, srs_id), an optional envelope and a
// standard WKB body. Empty geometries decode to nil.
func decodeGeoPackageGeometry(b []byte) (geom.T, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, eris.New("gpkg: not a geopackage geometry")
	}
	flags := b[3]
	if flags&0x10 != 0 {
		return nil, nil
	}
	indicator := int(flags>>1) & 0x07
	if indicator >= len(envelopeSizes) {
		return nil, eris.Errorf("gpkg: invalid envelope indicator %d", indicator)
	}
	start := 8 + envelopeSizes[indicator]
	if len(b) <= start {
		return nil, eris.New("gpkg: truncated geometry")
	}
	g, err := wkb.Unmarshal(b[start:])
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: decode wkb")
	}
	return g, nil
}
