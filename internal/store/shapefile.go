package store

import (
	"context"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/bdnb-api/internal/model"
)

// dbfNameLimit is the maximum length of a DBF field name.
const dbfNameLimit = 10

// ShapefileStore reads features from an ESRI shapefile. The go-shp reader
// is not safe for concurrent use, so every fetch opens its own reader.
type ShapefileStore struct {
	path    string
	aliases map[model.Column]string
}

// OpenShapefile checks that the shapefile at path is readable. aliases maps
// BDNB column names to DBF field names; columns whose name fits in a DBF
// field are looked up as is.
func OpenShapefile(path string, aliases map[string]string) (*ShapefileStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "shapefile: stat %s: %v", path, err)
	}
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "shapefile: open %s: %v", path, err)
	}
	defer func() { _ = reader.Close() }()

	s := &ShapefileStore{path: path, aliases: make(map[model.Column]string, len(aliases))}
	for col, field := range aliases {
		s.aliases[model.Column(col)] = field
	}

	fields := fieldIndex(reader)
	var unmapped []string
	for _, c := range model.AttributeColumns() {
		if _, ok := fields[strings.ToLower(s.fieldName(c))]; !ok {
			unmapped = append(unmapped, string(c))
		}
	}
	if len(unmapped) > 0 {
		zap.L().Warn("shapefile: columns without a DBF field will be missing",
			zap.String("path", path),
			zap.Strings("columns", unmapped),
		)
	}
	return s, nil
}

func (s *ShapefileStore) fieldName(c model.Column) string {
	if alias, ok := s.aliases[c]; ok {
		return alias
	}
	return string(c)
}

func fieldIndex(reader *shp.Reader) map[string]int {
	fields := reader.Fields()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		idx[strings.ToLower(name)] = i
	}
	return idx
}

// FetchByBBox implements Store. The shape bounding box from the record
// header is checked before the geometry is built.
func (s *ShapefileStore) FetchByBBox(ctx context.Context, bbox model.BBox, columns []model.Column) ([]model.BuildingRecord, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if err := checkColumns(columns); err != nil {
		return nil, err
	}

	reader, err := shp.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "shapefile: open %s: %v", s.path, err)
	}
	defer func() { _ = reader.Close() }()

	fields := fieldIndex(reader)
	colIdx := make([]int, len(columns))
	for i, c := range columns {
		name := strings.ToLower(s.fieldName(c))
		if len(name) > dbfNameLimit {
			colIdx[i] = -1
			continue
		}
		idx, ok := fields[name]
		if !ok {
			idx = -1
		}
		colIdx[i] = idx
	}

	records := make([]model.BuildingRecord, 0)
	var n, skipped int
	for reader.Next() {
		n++
		if n%1024 == 0 && ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "shapefile: read")
		}

		_, shape := reader.Shape()
		if shape == nil {
			continue
		}
		box := shape.BBox()
		if box.MinX > bbox.XMax || box.MaxX < bbox.XMin || box.MinY > bbox.YMax || box.MaxY < bbox.YMin {
			continue
		}

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		values := make([]any, len(columns))
		for i, idx := range colIdx {
			if idx < 0 {
				continue
			}
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			if val != "" {
				values[i] = val
			}
		}
		records = append(records, buildRecord(g, columns, values))
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "shapefile: read %s: %v", s.path, err)
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: skipped unsupported shapes", zap.Int("skipped", skipped))
	}
	return records, nil
}

// Close implements Store.
func (s *ShapefileStore) Close() error { return nil }

// shapeToGeom converts polygon and point shapes. Other shape types yield nil.
func shapeToGeom(shape shp.Shape) geom.T {
	switch sh := shape.(type) {
	case *shp.Polygon:
		return polygonToMultiPolygon(sh)
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{sh.X, sh.Y})
	default:
		return nil
	}
}

// polygonToMultiPolygon groups shapefile rings into polygons. Outer rings
// are clockwise; each counter-clockwise ring is a hole of the preceding
// outer ring.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("shapefile: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea returns twice the signed area of a closed XY ring; negative
// for clockwise rings.
func signedArea(flat []float64) float64 {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return sum
}
