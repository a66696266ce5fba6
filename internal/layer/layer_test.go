package layer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const sampleGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"name": "clinic", "top_classi": "Healthcare"},
			"geometry": {"type": "Point", "coordinates": [34.79, 31.25]}
		},
		{
			"type": "Feature",
			"properties": {"name": "block"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[34.78, 31.24], [34.80, 31.24], [34.80, 31.26], [34.78, 31.26], [34.78, 31.24]]]
			}
		}
	]
}`

func writeSample(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadGeoJSON(t *testing.T) {
	path := writeSample(t, "amenities.geojson", sampleGeoJSON)

	fc, err := ReadGeoJSON(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	pt, ok := fc.Features[0].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 34.79, pt.Coords()[0], 1e-9)
	assert.Equal(t, "clinic", fc.Features[0].Properties["name"])

	_, ok = fc.Features[1].Geometry.(*geom.Polygon)
	assert.True(t, ok)
}

func TestReadGeoJSONMissing(t *testing.T) {
	_, err := ReadGeoJSON(filepath.Join(t.TempDir(), "absent.geojson"))
	require.Error(t, err)
}

func TestReadGeoJSONMalformed(t *testing.T) {
	path := writeSample(t, "bad.geojson", `{"type": "FeatureCollection", "features": [{`)
	_, err := ReadGeoJSON(path)
	require.Error(t, err)
}

func TestReadDispatch(t *testing.T) {
	path := writeSample(t, "layer.geojson", sampleGeoJSON)
	fc, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	_, err = Read(writeSample(t, "layer.csv", "a,b\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestReadOptional(t *testing.T) {
	assert.Nil(t, ReadOptional(filepath.Join(t.TempDir(), "absent.geojson")))

	bad := writeSample(t, "bad.geojson", `not json`)
	assert.Nil(t, ReadOptional(bad))

	good := writeSample(t, "good.geojson", sampleGeoJSON)
	fc := ReadOptional(good)
	require.NotNil(t, fc)
	assert.Len(t, fc.Features, 2)
}

func TestWriteGeoJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.geojson")

	fc := &geojson.FeatureCollection{
		Features: []*geojson.Feature{
			{
				Geometry:   geom.NewPointFlat(geom.XY, []float64{34.79, 31.25}),
				Properties: map[string]interface{}{"num_trees": 3.0},
			},
		},
	}

	require.NoError(t, WriteGeoJSON(path, fc))

	got, err := ReadGeoJSON(path)
	require.NoError(t, err)
	require.Len(t, got.Features, 1)
	assert.Equal(t, 3.0, got.Features[0].Properties["num_trees"])
}

func TestWriteGeoJSONDeterministic(t *testing.T) {
	dir := t.TempDir()
	fc := &geojson.FeatureCollection{
		Features: []*geojson.Feature{
			{
				Geometry: geom.NewPointFlat(geom.XY, []float64{34.79, 31.25}),
				Properties: map[string]interface{}{
					"b": 1.0, "a": 2.0, "c": 3.0,
				},
			},
		},
	}

	p1 := filepath.Join(dir, "one.geojson")
	p2 := filepath.Join(dir, "two.geojson")
	require.NoError(t, WriteGeoJSON(p1, fc))
	require.NoError(t, WriteGeoJSON(p2, fc))

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "public_services", SanitizeName("public services"))
	assert.Equal(t, "a_b_c", SanitizeName(`a/b\c`))
	assert.Equal(t, "healthcare", SanitizeName("healthcare"))
}
