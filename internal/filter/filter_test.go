package filter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/urban95/accessmap-cli/internal/config"
	"github.com/urban95/accessmap-cli/internal/layer"
	"github.com/urban95/accessmap-cli/internal/model"
	"github.com/urban95/accessmap-cli/internal/store"
)

func point(lon, lat float64) *geojson.Feature {
	return &geojson.Feature{
		Geometry:   geom.NewPointFlat(geom.XY, []float64{lon, lat}),
		Properties: map[string]interface{}{},
	}
}

func square(lon, lat, d float64) *geojson.Feature {
	return &geojson.Feature{
		Geometry: geom.NewPolygonFlat(geom.XY, []float64{
			lon - d, lat - d,
			lon + d, lat - d,
			lon + d, lat + d,
			lon - d, lat + d,
			lon - d, lat - d,
		}, []int{10}),
		Properties: map[string]interface{}{},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, store.Store, *config.Config) {
	t.Helper()
	zap.ReplaceGlobals(zap.NewNop())

	root := t.TempDir()
	cfg := &config.Config{
		Data: config.DataConfig{
			DataDir:   filepath.Join(root, "data"),
			OutputDir: filepath.Join(root, "out"),
		},
		Filter: config.FilterConfig{
			MaxDistanceKM: 10,
			BoundaryLayer: "neighborhoods.geojson",
		},
	}
	require.NoError(t, os.MkdirAll(cfg.Data.DataDir, 0o755))

	st, err := store.NewSQLite(filepath.Join(root, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	return New(cfg, st), st, cfg
}

func writeBoundary(t *testing.T, cfg *config.Config) {
	t.Helper()
	// ~1km square around the city center.
	boundary := &geojson.FeatureCollection{Features: []*geojson.Feature{
		square(34.79, 31.25, 0.005),
	}}
	require.NoError(t, layer.WriteGeoJSON(filepath.Join(cfg.Data.DataDir, "neighborhoods.geojson"), boundary))
}

func TestFilterRun(t *testing.T) {
	p, st, cfg := newTestPipeline(t)
	writeBoundary(t, cfg)

	// Two buildings inside the study area, one ~55km east.
	buildings := &geojson.FeatureCollection{Features: []*geojson.Feature{
		square(34.79, 31.25, 0.0001),
		square(34.80, 31.25, 0.0001),
		square(35.37, 31.25, 0.0001),
	}}
	require.NoError(t, layer.WriteGeoJSON(filepath.Join(cfg.Data.DataDir, "buildings.geojson"), buildings))

	// One tree inside, one outside.
	trees := &geojson.FeatureCollection{Features: []*geojson.Feature{
		point(34.791, 31.251),
		point(35.40, 31.40),
	}}
	require.NoError(t, layer.WriteGeoJSON(filepath.Join(cfg.Data.DataDir, "trees.geojson"), trees))

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Buildings)
	assert.Equal(t, 1, result.Trees)
	assert.Equal(t, 3, result.Kept)
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, []string{"buildings", "neighborhoods", "trees"}, result.Layers)

	got, err := layer.ReadGeoJSON(filepath.Join(cfg.Data.OutputDir, "buildings.geojson"))
	require.NoError(t, err)
	assert.Len(t, got.Features, 2)

	// Boundary layer is copied through.
	boundary, err := layer.ReadGeoJSON(filepath.Join(cfg.Data.OutputDir, "neighborhoods.geojson"))
	require.NoError(t, err)
	assert.Len(t, boundary.Features, 1)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{Command: "filter"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, float64(10), runs[0].Params.MaxDistanceKM)
}

func TestFilterRunIncludesEveryLayerFile(t *testing.T) {
	p, _, cfg := newTestPipeline(t)
	writeBoundary(t, cfg)

	buildings := &geojson.FeatureCollection{Features: []*geojson.Feature{
		square(34.79, 31.25, 0.0001),
	}}
	require.NoError(t, layer.WriteGeoJSON(filepath.Join(cfg.Data.DataDir, "buildings.geojson"), buildings))

	// A layer outside the fixed buildings/amenities/trees/parks set is
	// filtered too, one feature in range and one far away.
	schools := &geojson.FeatureCollection{Features: []*geojson.Feature{
		point(34.792, 31.252),
		point(35.40, 31.40),
	}}
	require.NoError(t, layer.WriteGeoJSON(filepath.Join(cfg.Data.DataDir, "schools.geojson"), schools))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"buildings", "neighborhoods", "schools"}, result.Layers)

	got, err := layer.ReadGeoJSON(filepath.Join(cfg.Data.OutputDir, "schools.geojson"))
	require.NoError(t, err)
	assert.Len(t, got.Features, 1)
}

func TestInputLayersSkipsBoundaryAndNonLayers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"buildings.geojson", "schools.json", "trees.shp",
		"neighborhoods.geojson", "README.md", "trees.dbf",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}

	bases, err := inputLayers(dir, "neighborhoods.geojson")
	require.NoError(t, err)
	assert.Equal(t, []string{"buildings", "schools", "trees"}, bases)
}

func TestFilterRunMissingBoundary(t *testing.T) {
	p, st, _ := newTestPipeline(t)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary")

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
}

func TestFilterRunEmptyBoundary(t *testing.T) {
	p, _, cfg := newTestPipeline(t)
	require.NoError(t, layer.WriteGeoJSON(
		filepath.Join(cfg.Data.DataDir, "neighborhoods.geojson"),
		&geojson.FeatureCollection{},
	))

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no features")
}

func TestFilterRunNoInputLayers(t *testing.T) {
	p, _, cfg := newTestPipeline(t)
	writeBoundary(t, cfg)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input layers")
}

func TestKeepWithinBoundaryInclusive(t *testing.T) {
	boundary := &geojson.FeatureCollection{Features: []*geojson.Feature{
		square(34.79, 31.25, 0.005),
	}}

	// Inside the boundary polygon itself: distance zero, always kept.
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{
		point(34.79, 31.25),
	}}
	kept := keepWithin(fc, boundary, 1)
	assert.Len(t, kept.Features, 1)

	// Geometry-less features are dropped.
	fc = &geojson.FeatureCollection{Features: []*geojson.Feature{{}}}
	kept = keepWithin(fc, boundary, 1000)
	assert.Empty(t, kept.Features)
}
