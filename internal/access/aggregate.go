package access

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urban95/accessmap-cli/internal/geo"
)

// Options configures the aggregation.
type Options struct {
	RadiusM        float64  // analysis radius around building centroids (default 100)
	TypeProperty   string   // amenity property carrying the category (default "top_classi")
	ExcludedTypes  []string // categories removed from amenity outputs (still counted)
	KeepProperties []string // amenity properties preserved in outputs
	Concurrency    int      // building workers (default 4)
}

// Summary reports what the aggregation processed.
type Summary struct {
	Buildings        int            `json:"buildings"`
	SkippedBuildings int            `json:"skipped_buildings"`
	Amenities        int            `json:"amenities"`
	Trees            int            `json:"trees"`
	RadiusM          float64        `json:"radius_m"`
	TypeTotals       map[string]int `json:"type_totals"`
}

// Result holds the computed output layers.
type Result struct {
	Buildings *geojson.FeatureCollection            // buildings with count properties
	Amenities *geojson.FeatureCollection            // filtered amenity points
	ByType    map[string]*geojson.FeatureCollection // amenity points per category
	Trees     *geojson.FeatureCollection            // tree centroids
	Summary   Summary
}

// amenityPoint is a typed amenity reduced to its centroid.
type amenityPoint struct {
	lon, lat float64
	typ      string
	feature  *geojson.Feature
}

// Compute runs the accessibility aggregation: for every building with a
// valid geometry it counts, per category, the amenity points within
// RadiusM of the building centroid, plus the tree points. Counts are
// attached to the building features as integer properties. Trees and
// amenities may be nil; their counts default to zero (missing layers are
// tolerated by design).
func Compute(ctx context.Context, buildings, amenities, trees *geojson.FeatureCollection, opts Options) (*Result, error) {
	if buildings == nil {
		return nil, eris.New("access: buildings layer is required")
	}
	if opts.RadiusM <= 0 {
		opts.RadiusM = 100
	}
	if opts.TypeProperty == "" {
		opts.TypeProperty = "top_classi"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	log := zap.L().With(zap.String("component", "access.aggregate"))

	// Reduce amenities to typed centroid points and index them.
	points, typeTotals := collectAmenityPoints(amenities, opts.TypeProperty)
	amenityIdx := NewPointIndex()
	for _, p := range points {
		amenityIdx.Insert(p.lon, p.lat)
	}

	// All categories ever seen, sorted, so every building carries the
	// same count columns.
	allTypes := make([]string, 0, len(typeTotals))
	for t := range typeTotals {
		allTypes = append(allTypes, t)
	}
	sort.Strings(allTypes)

	// Index tree centroids.
	treeIdx := NewPointIndex()
	treesOut := &geojson.FeatureCollection{}
	if trees != nil {
		for _, f := range trees.Features {
			if f.Geometry == nil || geo.IsEmpty(f.Geometry) {
				continue
			}
			c, err := geo.Centroid(f.Geometry)
			if err != nil {
				continue
			}
			treeIdx.Insert(c[0], c[1])
			treesOut.Features = append(treesOut.Features, centroidFeature(f, c))
		}
	}

	// Keep only buildings with usable geometry; building ids are
	// positions in the filtered ordering, so re-runs are stable.
	valid := make([]*geojson.Feature, 0, len(buildings.Features))
	var skipped int
	for _, f := range buildings.Features {
		if f.Geometry == nil || geo.IsEmpty(f.Geometry) {
			skipped++
			continue
		}
		valid = append(valid, f)
	}

	log.Info("aggregating accessibility",
		zap.Int("buildings", len(valid)),
		zap.Int("skipped_buildings", skipped),
		zap.Int("amenities", amenityIdx.Len()),
		zap.Int("trees", treeIdx.Len()),
		zap.Float64("radius_m", opts.RadiusM),
	)

	// Partition buildings across workers. Each building's counts are
	// independent, so output does not depend on scheduling.
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	chunk := (len(valid) + opts.Concurrency - 1) / opts.Concurrency
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(valid); start += chunk {
		end := start + chunk
		if end > len(valid) {
			end = len(valid)
		}
		batch := valid[start:end]
		offset := start
		g.Go(func() error {
			for i, f := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				countBuilding(f, offset+i, points, amenityIdx, treeIdx, allTypes, opts.RadiusM)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "access: aggregate")
	}

	res := &Result{
		Buildings: &geojson.FeatureCollection{Features: valid},
		Trees:     treesOut,
		Summary: Summary{
			Buildings:        len(valid),
			SkippedBuildings: skipped,
			Amenities:        amenityIdx.Len(),
			Trees:            treeIdx.Len(),
			RadiusM:          opts.RadiusM,
			TypeTotals:       typeTotals,
		},
	}
	res.Amenities, res.ByType = filterAmenities(points, opts)

	return res, nil
}

// countBuilding computes and attaches the count properties for one building.
func countBuilding(f *geojson.Feature, id int, points []amenityPoint, amenityIdx, treeIdx *PointIndex, allTypes []string, radiusM float64) {
	c, err := geo.Centroid(f.Geometry)
	if err != nil {
		// Non-empty geometry with no computable centroid: record zeros.
		c = nil
	}

	if f.Properties == nil {
		f.Properties = make(map[string]interface{})
	}
	f.Properties[PropBuildingID] = id

	perType := make(map[string]int, len(allTypes))
	total := 0
	numTrees := 0
	if c != nil {
		for _, pid := range amenityIdx.Within(c[0], c[1], radiusM) {
			perType[points[pid].typ]++
			total++
		}
		numTrees = len(treeIdx.Within(c[0], c[1], radiusM))
	}

	for _, t := range allTypes {
		f.Properties[CountProperty(t)] = perType[t]
	}
	f.Properties[PropNumAmenities] = total
	f.Properties[PropNumTrees] = numTrees
	f.Properties[PropAccessLevel] = Level(total, numTrees)
}

// collectAmenityPoints reduces amenity features to typed centroid points.
// Features without a usable geometry or category are dropped.
func collectAmenityPoints(amenities *geojson.FeatureCollection, typeProperty string) ([]amenityPoint, map[string]int) {
	totals := make(map[string]int)
	if amenities == nil {
		return nil, totals
	}

	points := make([]amenityPoint, 0, len(amenities.Features))
	for _, f := range amenities.Features {
		if f.Geometry == nil || geo.IsEmpty(f.Geometry) {
			continue
		}
		typ := NormalizeType(stringProp(f.Properties, typeProperty))
		if typ == "" {
			continue
		}
		c, err := geo.Centroid(f.Geometry)
		if err != nil {
			continue
		}
		points = append(points, amenityPoint{lon: c[0], lat: c[1], typ: typ, feature: f})
		totals[typ]++
	}
	return points, totals
}

// filterAmenities builds the amenity output layers: excluded categories
// removed, properties reduced to the keep list plus the normalized
// category, grouped overall and per category.
func filterAmenities(points []amenityPoint, opts Options) (*geojson.FeatureCollection, map[string]*geojson.FeatureCollection) {
	excluded := make(map[string]bool, len(opts.ExcludedTypes))
	for _, t := range opts.ExcludedTypes {
		excluded[NormalizeType(t)] = true
	}

	keep := make(map[string]bool, len(opts.KeepProperties))
	for _, p := range opts.KeepProperties {
		keep[p] = true
	}

	all := &geojson.FeatureCollection{}
	byType := make(map[string]*geojson.FeatureCollection)

	for _, p := range points {
		if excluded[p.typ] {
			continue
		}

		props := make(map[string]interface{})
		for k, v := range p.feature.Properties {
			if len(keep) == 0 || keep[k] {
				props[k] = v
			}
		}
		props[PropAmenityType] = p.typ

		out := &geojson.Feature{
			ID:         p.feature.ID,
			Geometry:   p.feature.Geometry,
			Properties: props,
		}
		all.Features = append(all.Features, out)

		fc, ok := byType[p.typ]
		if !ok {
			fc = &geojson.FeatureCollection{}
			byType[p.typ] = fc
		}
		fc.Features = append(fc.Features, out)
	}

	return all, byType
}

// centroidFeature returns a point feature at c carrying f's properties.
func centroidFeature(f *geojson.Feature, c []float64) *geojson.Feature {
	return &geojson.Feature{
		ID:         f.ID,
		Geometry:   pointAt(c[0], c[1]),
		Properties: f.Properties,
	}
}

func pointAt(lon, lat float64) geom.T {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat})
}

func stringProp(props map[string]interface{}, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}
