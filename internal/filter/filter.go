// Package filter trims input layers to the study area: features farther
// than the configured distance from every boundary geometry are removed.
package filter

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/urban95/accessmap-cli/internal/config"
	"github.com/urban95/accessmap-cli/internal/geo"
	"github.com/urban95/accessmap-cli/internal/layer"
	"github.com/urban95/accessmap-cli/internal/model"
	"github.com/urban95/accessmap-cli/internal/preprocess"
	"github.com/urban95/accessmap-cli/internal/store"
)

// inputLayers lists the filterable layer base names in dir: every
// GeoJSON or shapefile except the boundary layer, which is copied
// through unchanged. Files sharing a base name collapse to one entry;
// FindLayer picks the preferred extension.
func inputLayers(dir, boundaryName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "filter: list %s", dir)
	}

	boundaryBase := strings.TrimSuffix(boundaryName, filepath.Ext(boundaryName))
	seen := make(map[string]bool)
	var bases []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".geojson", ".json", ".shp":
		default:
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if base == boundaryBase || seen[base] {
			continue
		}
		seen[base] = true
		bases = append(bases, base)
	}
	sort.Strings(bases)
	return bases, nil
}

// Pipeline runs the study-area filter.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
}

// New creates a filter Pipeline.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// Run filters every present input layer against the boundary layer and
// writes the trimmed copies to the output directory. The run is
// recorded in the store.
func (p *Pipeline) Run(ctx context.Context) (*model.RunResult, error) {
	log := zap.L().With(zap.String("component", "filter"))
	started := time.Now()

	run, err := p.store.CreateRun(ctx, "filter", model.RunParams{
		MaxDistanceKM: p.cfg.Filter.MaxDistanceKM,
		DataDir:       p.cfg.Data.DataDir,
		OutputDir:     p.cfg.Data.OutputDir,
	})
	if err != nil {
		return nil, eris.Wrap(err, "filter: create run")
	}
	log.Info("starting run",
		zap.String("run_id", run.ID),
		zap.Float64("max_distance_km", p.cfg.Filter.MaxDistanceKM),
	)

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
		zap.Int("kept", result.Kept),
		zap.Int("removed", result.Removed),
		zap.Int64("duration_ms", result.DurationMS),
	)
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, log *zap.Logger) (*model.RunResult, error) {
	boundaryPath := filepath.Join(p.cfg.Data.DataDir, p.cfg.Filter.BoundaryLayer)
	boundary, err := layer.Read(boundaryPath)
	if err != nil {
		return nil, eris.Wrapf(err, "filter: read boundary %s", boundaryPath)
	}
	if len(boundary.Features) == 0 {
		return nil, eris.Errorf("filter: boundary layer %s has no features", boundaryPath)
	}

	maxM := p.cfg.Filter.MaxDistanceKM * 1000
	if maxM <= 0 {
		maxM = 10_000
	}

	bases, err := inputLayers(p.cfg.Data.DataDir, p.cfg.Filter.BoundaryLayer)
	if err != nil {
		return nil, err
	}
	buildingsBase, amenitiesBase, treesBase, _ := preprocess.Bases(p.cfg)

	result := &model.RunResult{}
	for _, base := range bases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, err := preprocess.FindLayer(p.cfg.Data.DataDir, base)
		if err != nil {
			continue
		}
		fc := layer.ReadOptional(path)
		if fc == nil {
			continue
		}

		kept := keepWithin(fc, boundary, maxM)
		out := filepath.Join(p.cfg.Data.OutputDir, base+".geojson")
		if err := layer.WriteGeoJSON(out, kept); err != nil {
			return nil, err
		}

		removed := len(fc.Features) - len(kept.Features)
		result.Kept += len(kept.Features)
		result.Removed += removed
		result.Layers = append(result.Layers, base)

		log.Info("filtered layer",
			zap.String("layer", base),
			zap.Int("original", len(fc.Features)),
			zap.Int("kept", len(kept.Features)),
			zap.Int("removed", removed),
		)

		switch base {
		case buildingsBase:
			result.Buildings = len(kept.Features)
		case amenitiesBase:
			result.Amenities = len(kept.Features)
		case treesBase:
			result.Trees = len(kept.Features)
		}
	}
	if len(result.Layers) == 0 {
		return nil, eris.Errorf("filter: no input layers found in %s", p.cfg.Data.DataDir)
	}

	// The boundary rides along so downstream consumers see the study area.
	boundaryBase := strings.TrimSuffix(p.cfg.Filter.BoundaryLayer, filepath.Ext(p.cfg.Filter.BoundaryLayer))
	if err := layer.WriteGeoJSON(filepath.Join(p.cfg.Data.OutputDir, boundaryBase+".geojson"), boundary); err != nil {
		return nil, err
	}
	result.Layers = append(result.Layers, boundaryBase)
	sort.Strings(result.Layers)

	return result, nil
}

// keepWithin returns the features of fc lying within maxM meters of at
// least one boundary feature. Features without geometry are removed.
func keepWithin(fc, boundary *geojson.FeatureCollection, maxM float64) *geojson.FeatureCollection {
	out := &geojson.FeatureCollection{}
	for _, f := range fc.Features {
		if f.Geometry == nil || geo.IsEmpty(f.Geometry) {
			continue
		}
		for _, b := range boundary.Features {
			if b.Geometry == nil || geo.IsEmpty(b.Geometry) {
				continue
			}
			if geo.GeometryWithinDistance(f.Geometry, b.Geometry, maxM) {
				out.Features = append(out.Features, f)
				break
			}
		}
	}
	return out
}
