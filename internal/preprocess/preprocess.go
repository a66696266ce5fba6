// Package preprocess orchestrates the accessibility preprocessing run:
// read the input layers, repair text encoding, compute per-building
// accessibility counts, and write the output layers for the web map.
package preprocess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/urban95/accessmap-cli/internal/access"
	"github.com/urban95/accessmap-cli/internal/config"
	"github.com/urban95/accessmap-cli/internal/layer"
	"github.com/urban95/accessmap-cli/internal/model"
	"github.com/urban95/accessmap-cli/internal/store"
)

// Default input layer base names, resolved against the data directory
// with .geojson, .json and .shp extensions tried in that order. The
// data config can override each of them.
const (
	LayerBuildings = "buildings"
	LayerAmenities = "amenities"
	LayerTrees     = "trees"
	LayerParks     = "parks"
)

// Bases returns the configured input layer base names, falling back to
// the defaults where the config leaves them unset.
func Bases(cfg *config.Config) (buildings, amenities, trees, parks string) {
	return baseOr(cfg.Data.BuildingsLayer, LayerBuildings),
		baseOr(cfg.Data.AmenitiesLayer, LayerAmenities),
		baseOr(cfg.Data.TreesLayer, LayerTrees),
		baseOr(cfg.Data.ParksLayer, LayerParks)
}

func baseOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Output layer names.
const (
	OutBuildings = "buildings_accessibility"
	OutAmenities = "amenities_all"
	OutTrees     = "trees"
	OutParks     = "parks"
)

var layerExtensions = []string{".geojson", ".json", ".shp"}

// Pipeline runs the preprocessing end to end.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
}

// New creates a Pipeline. The store records run history and layer
// checksums; it must be non-nil.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// Run executes the preprocessing pipeline and records the run.
func (p *Pipeline) Run(ctx context.Context) (*model.RunResult, error) {
	log := zap.L().With(zap.String("component", "preprocess"))
	started := time.Now()

	buildingsBase, amenitiesBase, treesBase, parksBase := Bases(p.cfg)
	params := model.RunParams{
		RadiusM:   p.cfg.Access.RadiusM,
		DataDir:   p.cfg.Data.DataDir,
		OutputDir: p.cfg.Data.OutputDir,
		InputChecksums: inputChecksums(p.cfg.Data.DataDir,
			buildingsBase, amenitiesBase, treesBase, parksBase),
	}

	run, err := p.store.CreateRun(ctx, "preprocess", params)
	if err != nil {
		return nil, eris.Wrap(err, "preprocess: create run")
	}
	log.Info("starting run", zap.String("run_id", run.ID), zap.Float64("radius_m", params.RadiusM))

	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Warn("failed to update run status", zap.Error(err))
	}

	result, err := p.process(ctx, log)
	if err != nil {
		if failErr := p.store.FailRun(ctx, run.ID, err); failErr != nil {
			log.Warn("failed to record run failure", zap.Error(failErr))
		}
		return nil, err
	}

	result.DurationMS = time.Since(started).Milliseconds()
	if err := p.store.CompleteRun(ctx, run.ID, result); err != nil {
		log.Warn("failed to record run completion", zap.Error(err))
	}

	log.Info("run complete",
		zap.String("run_id", run.ID),
		zap.Int("buildings", result.Buildings),
		zap.Int("amenities", result.Amenities),
		zap.Int("trees", result.Trees),
		zap.Int64("duration_ms", result.DurationMS),
	)
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, log *zap.Logger) (*model.RunResult, error) {
	dataDir := p.cfg.Data.DataDir

	buildingsBase, amenitiesBase, treesBase, parksBase := Bases(p.cfg)

	buildings, err := readRequiredLayer(dataDir, buildingsBase)
	if err != nil {
		return nil, err
	}
	// Amenity counts are the core output, so an absent amenities layer
	// fails the run instead of producing all-zero buildings.
	amenities, err := readRequiredLayer(dataDir, amenitiesBase)
	if err != nil {
		return nil, err
	}

	trees := readOptionalLayer(dataDir, treesBase, log)
	parks := readOptionalLayer(dataDir, parksBase, log)

	for name, fc := range map[string]*geojson.FeatureCollection{
		buildingsBase: buildings,
		amenitiesBase: amenities,
		parksBase:     parks,
	} {
		if fc == nil {
			continue
		}
		if n := layer.RepairFeatureCollection(fc); n > 0 {
			log.Info("repaired text encoding", zap.String("layer", name), zap.Int("properties", n))
		}
	}

	res, err := access.Compute(ctx, buildings, amenities, trees, access.Options{
		RadiusM:        p.cfg.Access.RadiusM,
		TypeProperty:   p.cfg.Access.TypeProperty,
		ExcludedTypes:  p.cfg.Access.ExcludedTypes,
		KeepProperties: p.cfg.Access.KeepProperties,
		Concurrency:    p.cfg.Access.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	outputs := map[string]*geojson.FeatureCollection{
		OutBuildings: res.Buildings,
		OutAmenities: res.Amenities,
		OutTrees:     res.Trees,
	}
	for typ, fc := range res.ByType {
		outputs["amenities_"+layer.SanitizeName(typ)] = fc
	}
	if parks != nil {
		outputs[OutParks] = parks
	}

	checksums, err := p.writeOutputs(outputs)
	if err != nil {
		return nil, err
	}
	if err := p.store.SetLayerChecksums(ctx, checksums); err != nil {
		return nil, eris.Wrap(err, "preprocess: record checksums")
	}

	layers := make([]string, 0, len(outputs))
	for name := range outputs {
		layers = append(layers, name)
	}
	sort.Strings(layers)

	return &model.RunResult{
		Buildings:        res.Summary.Buildings,
		SkippedBuildings: res.Summary.SkippedBuildings,
		Amenities:        res.Summary.Amenities,
		Trees:            res.Summary.Trees,
		RadiusM:          res.Summary.RadiusM,
		TypeTotals:       res.Summary.TypeTotals,
		Layers:           layers,
	}, nil
}

// writeOutputs writes every layer to the output directory, mirrors it
// into the web data directory when one is configured, and returns the
// content checksums.
func (p *Pipeline) writeOutputs(outputs map[string]*geojson.FeatureCollection) ([]model.LayerChecksum, error) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	checksums := make([]model.LayerChecksum, 0, len(names))
	for _, name := range names {
		fc := outputs[name]
		path := filepath.Join(p.cfg.Data.OutputDir, name+".geojson")
		if err := layer.WriteGeoJSON(path, fc); err != nil {
			return nil, err
		}
		if webDir := p.cfg.Data.WebDataDir; webDir != "" {
			if err := layer.WriteGeoJSON(filepath.Join(webDir, name+".geojson"), fc); err != nil {
				return nil, err
			}
		}

		sum, err := checksumFile(path)
		if err != nil {
			return nil, err
		}
		checksums = append(checksums, model.LayerChecksum{
			Name:         name,
			SHA256:       sum,
			FeatureCount: len(fc.Features),
		})
	}
	return checksums, nil
}

// FindLayer resolves a layer base name to an existing file in dir.
func FindLayer(dir, base string) (string, error) {
	for _, ext := range layerExtensions {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", eris.Errorf("preprocess: layer %q not found in %s", base, dir)
}

func readRequiredLayer(dir, base string) (*geojson.FeatureCollection, error) {
	path, err := FindLayer(dir, base)
	if err != nil {
		return nil, err
	}
	fc, err := layer.Read(path)
	if err != nil {
		return nil, eris.Wrapf(err, "preprocess: read %s", path)
	}
	return fc, nil
}

func readOptionalLayer(dir, base string, log *zap.Logger) *geojson.FeatureCollection {
	path, err := FindLayer(dir, base)
	if err != nil {
		log.Warn("optional layer missing", zap.String("layer", base))
		return nil
	}
	return layer.ReadOptional(path)
}

// inputChecksums hashes whichever input layers exist so the run record
// captures exactly what was processed.
func inputChecksums(dir string, bases ...string) map[string]string {
	sums := make(map[string]string)
	for _, base := range bases {
		path, err := FindLayer(dir, base)
		if err != nil {
			continue
		}
		sum, err := checksumFile(path)
		if err != nil {
			continue
		}
		sums[filepath.Base(path)] = sum
	}
	return sums
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "preprocess: open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrapf(err, "preprocess: hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
