package access

import (
	"github.com/dhconnelly/rtreego"

	"github.com/urban95/accessmap-cli/internal/geo"
)

// pointTol is the degenerate rectangle extent used to index points.
const pointTol = 1e-9

// indexedPoint is an R-tree entry for a lon/lat point.
type indexedPoint struct {
	lon, lat float64
	id       int
	rect     rtreego.Rect
}

func (p *indexedPoint) Bounds() rtreego.Rect {
	return p.rect
}

// PointIndex is a 2-D R-tree over lon/lat points supporting exact
// great-circle radius queries. Candidate points come from a
// degree-padded bounding-box search and are verified with haversine
// distance, so results match the brute-force definition.
type PointIndex struct {
	tree *rtreego.Rtree
	pts  []*indexedPoint
}

// NewPointIndex creates an empty point index.
func NewPointIndex() *PointIndex {
	return &PointIndex{tree: rtreego.NewTree(2, 25, 50)}
}

// Insert adds a point and returns its id (insertion order).
func (idx *PointIndex) Insert(lon, lat float64) int {
	rect, err := rtreego.NewRect(rtreego.Point{lon, lat}, []float64{pointTol, pointTol})
	if err != nil {
		// Only reachable with non-finite coordinates.
		return -1
	}
	p := &indexedPoint{lon: lon, lat: lat, id: len(idx.pts), rect: rect}
	idx.pts = append(idx.pts, p)
	idx.tree.Insert(p)
	return p.id
}

// Len returns the number of indexed points.
func (idx *PointIndex) Len() int {
	return len(idx.pts)
}

// Within returns the ids of all points within radiusM meters of the
// given lon/lat center.
func (idx *PointIndex) Within(lon, lat, radiusM float64) []int {
	if len(idx.pts) == 0 {
		return nil
	}

	// Pad the search box a little so boundary points are never cut off
	// by the planar approximation.
	dLat := geo.MetersToDegreesLat(radiusM) * 1.01
	dLon := geo.MetersToDegreesLon(radiusM, lat) * 1.01

	rect, err := rtreego.NewRect(
		rtreego.Point{lon - dLon, lat - dLat},
		[]float64{2 * dLon, 2 * dLat},
	)
	if err != nil {
		return nil
	}

	var ids []int
	for _, candidate := range idx.tree.SearchIntersect(rect) {
		p := candidate.(*indexedPoint)
		if geo.Haversine(lat, lon, p.lat, p.lon) <= radiusM {
			ids = append(ids, p.id)
		}
	}
	return ids
}
