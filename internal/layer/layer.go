// Package layer reads and writes geospatial layers. GeoJSON is the
// primary interchange format; ESRI shapefiles are accepted as input and
// converted to GeoJSON features on load.
package layer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Read loads a layer file, dispatching on extension. Supported formats
// are .geojson/.json and .shp.
func Read(path string) (*geojson.FeatureCollection, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ReadGeoJSON(path)
	case ".shp":
		return ReadShapefile(path)
	default:
		return nil, eris.Errorf("layer: unsupported format %q", filepath.Ext(path))
	}
}

// ReadGeoJSON loads a GeoJSON FeatureCollection from disk.
func ReadGeoJSON(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "layer: parse %s", path)
	}
	return &fc, nil
}

// ReadOptional loads a layer and degrades to nil when the file is
// missing or malformed. Malformed files are logged and skipped.
func ReadOptional(path string) *geojson.FeatureCollection {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	fc, err := Read(path)
	if err != nil {
		zap.L().Warn("layer: skipping unreadable optional layer",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}
	return fc
}

// WriteGeoJSON writes a FeatureCollection to disk, creating parent
// directories as needed. Output is deterministic for a given collection.
func WriteGeoJSON(path string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "layer: create dir for %s", path)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrapf(err, "layer: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "layer: write %s", path)
	}
	return nil
}

// SanitizeName converts a layer or category name into a filesystem-safe
// token for output filenames.
func SanitizeName(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return r.Replace(name)
}
