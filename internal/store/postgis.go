package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/bdnb-api/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostGISStore.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Defaults for the PostGIS backend.
const (
	defaultTable          = "bnb_export"
	defaultGeometryColumn = "geometry"
	defaultSRID           = 2154
)

// PostGISStore reads features from a PostGIS table through a pgx pool.
type PostGISStore struct {
	pool       Pool
	table      string
	geomColumn string
	srid       int
}

// NewPostGIS connects to the database named by cfg.DSN.
func NewPostGIS(ctx context.Context, cfg Config) (*PostGISStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: parse config")
	}
	maxConns := int32(10)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "postgis: create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(ErrUnavailable, "postgis: ping: %v", err)
	}

	s := newPostGISStore(pool, cfg.Table, cfg.GeometryColumn, cfg.SRID)
	zap.L().Info("postgis: connected",
		zap.String("table", s.table),
		zap.String("geometry", s.geomColumn),
		zap.Int32("max_conns", maxConns),
	)
	return s, nil
}

func newPostGISStore(pool Pool, table, geomColumn string, srid int) *PostGISStore {
	if table == "" {
		table = defaultTable
	}
	if geomColumn == "" {
		geomColumn = defaultGeometryColumn
	}
	if srid == 0 {
		srid = defaultSRID
	}
	return &PostGISStore{pool: pool, table: table, geomColumn: geomColumn, srid: srid}
}

// selectQuery reads every column as text so that numeric columns stored as
// strings convert the same way as native ones.
func (s *PostGISStore) selectQuery(columns []model.Column) string {
	geomCol := pgx.Identifier{s.geomColumn}.Sanitize()

	var b strings.Builder
	b.WriteString("SELECT ST_AsBinary(")
	b.WriteString(geomCol)
	b.WriteString(")")
	for _, c := range columns {
		b.WriteString(", ")
		b.WriteString(pgx.Identifier{string(c)}.Sanitize())
		b.WriteString("::text")
	}
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier(strings.Split(s.table, ".")).Sanitize())
	b.WriteString(" WHERE ")
	b.WriteString(geomCol)
	b.WriteString(" && ST_MakeEnvelope($1, $2, $3, $4, ")
	b.WriteString(strconv.Itoa(s.srid))
	b.WriteString(")")
	return b.String()
}

// FetchByBBox implements Store.
func (s *PostGISStore) FetchByBBox(ctx context.Context, bbox model.BBox, columns []model.Column) ([]model.BuildingRecord, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if err := checkColumns(columns); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, s.selectQuery(columns), bbox.XMin, bbox.YMin, bbox.XMax, bbox.YMax)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "postgis: query")
		}
		return nil, eris.Wrapf(ErrUnavailable, "postgis: query %s: %v", s.table, err)
	}
	defer rows.Close()

	records := make([]model.BuildingRecord, 0)
	var skipped int
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(ErrUnavailable, "postgis: scan %s: %v", s.table, err)
		}
		if len(values) == 0 {
			continue
		}

		blob, _ := values[0].([]byte)
		g, err := wkb.Unmarshal(blob)
		if err != nil || g == nil {
			skipped++
			continue
		}
		if !bbox.Intersects(g) {
			continue
		}
		records = append(records, buildRecord(g, columns, values[1:]))
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "postgis: read rows")
		}
		return nil, eris.Wrapf(ErrUnavailable, "postgis: read rows: %v", err)
	}

	if skipped > 0 {
		zap.L().Debug("postgis: skipped undecodable geometries", zap.Int("skipped", skipped))
	}
	return records, nil
}

// Close implements Store.
func (s *PostGISStore) Close() error {
	s.pool.Close()
	return nil
}
