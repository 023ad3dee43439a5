package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bdnb-api/internal/config"
	"github.com/sells-group/bdnb-api/internal/model"
	"github.com/sells-group/bdnb-api/internal/project"
)

func testConfig(path string) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "shapefile",
			Path:        path,
			SRID:        2154,
			TimeoutSecs: 5,
			FieldAliases: map[string]string{
				string(model.ColEnergyLabel): "dpe",
			},
		},
		Geocode: config.GeocodeConfig{
			Providers:   []string{"nominatim", "ban"},
			UserAgent:   "bdnb-api-test",
			BANMinScore: 0.5,
			TimeoutSecs: 1,
		},
		Server: config.ServerConfig{Port: 8000},
		Log:    config.LogConfig{Level: "info", Format: "json"},
	}
}

// writeFixture creates a one-building shapefile and returns its path.
func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bnb_export.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("dpe", 1)}))

	points := []shp.Point{
		{X: 652000, Y: 6862000},
		{X: 652000, Y: 6862010},
		{X: 652010, Y: 6862010},
		{X: 652010, Y: 6862000},
		{X: 652000, Y: 6862000},
	}
	n := int(w.Write(&shp.Polygon{
		Box:       shp.BBoxFromPoints(points),
		NumParts:  1,
		NumPoints: int32(len(points)),
		Parts:     []int32{0},
		Points:    points,
	}))
	require.NoError(t, w.WriteAttribute(n, 0, "C"))
	w.Close()

	return path
}

func TestQueryEnv_Close_Nil(t *testing.T) {
	qe := &queryEnv{}
	assert.NotPanics(t, func() {
		qe.Close()
	})
}

func TestInitQueryEnv_FailsOnBadDriver(t *testing.T) {
	cfg = testConfig("")
	cfg.Store.Driver = "mysql"

	env, err := initQueryEnv(context.Background(), "query")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestInitQueryEnv_FailsOnUnsupportedSRID(t *testing.T) {
	cfg = testConfig(writeFixture(t))
	cfg.Store.SRID = 3857

	env, err := initQueryEnv(context.Background(), "query")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init resolver")
}

func TestInitQueryEnv_FailsOnMissingDataset(t *testing.T) {
	cfg = testConfig(filepath.Join(t.TempDir(), "missing.shp"))

	env, err := initQueryEnv(context.Background(), "query")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init store")
}

func TestInitQueryEnv_Shapefile(t *testing.T) {
	cfg = testConfig(writeFixture(t))

	env, err := initQueryEnv(context.Background(), "query")
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Service)
	require.NotNil(t, env.Registry)

	fc, err := env.Service.ByBBox(context.Background(), model.BBox{
		XMin: 651990, YMin: 6861990, XMax: 652020, YMax: 6862020,
	}, project.ModeBasic)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "C", fc.Features[0].Properties[project.LabelEnergyLabel])

	families, err := env.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestStoreConfig(t *testing.T) {
	sc := storeConfig(config.StoreConfig{
		Driver:         "postgis",
		DatabaseURL:    "postgres://bdnb@localhost/bdnb",
		Table:          "bdnb.bnb_export",
		GeometryColumn: "geom",
		SRID:           2154,
		MaxConns:       4,
	})
	assert.Equal(t, "postgis", sc.Driver)
	assert.Equal(t, "postgres://bdnb@localhost/bdnb", sc.DSN)
	assert.Equal(t, "bdnb.bnb_export", sc.Table)
	assert.Equal(t, "geom", sc.GeometryColumn)
	assert.Equal(t, int32(4), sc.MaxConns)
}

func TestBuildGeocoder(t *testing.T) {
	gc := buildGeocoder(config.GeocodeConfig{Providers: []string{"ban", "nominatim", "unknown"}})
	assert.Equal(t, []string{"ban", "nominatim"}, gc.Providers())

	assert.Empty(t, buildGeocoder(config.GeocodeConfig{}).Providers())
}

func TestQueryBBoxCommand_EndToEnd(t *testing.T) {
	path := writeFixture(t)
	t.Setenv("BDNB_STORE_DRIVER", "shapefile")
	t.Setenv("BDNB_STORE_PATH", path)
	t.Setenv("BDNB_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"query", "bbox",
		"--xmin", "651990", "--ymin", "6861990",
		"--xmax", "652020", "--ymax", "6862020",
		"--mode", "full",
	})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)
	require.Len(t, decoded.Features, 1)
	assert.Equal(t, "N.C.", decoded.Features[0].Properties[project.LabelAddress])
}
