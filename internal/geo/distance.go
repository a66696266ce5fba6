// Package geo provides planar and spherical geometry helpers for
// radius queries and the study-area distance filter.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// WGS84 coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// MetersToDegreesLat converts a distance in meters to degrees of latitude.
func MetersToDegreesLat(m float64) float64 {
	return m / EarthRadiusM * 180 / math.Pi
}

// MetersToDegreesLon converts a distance in meters to degrees of longitude
// at the given latitude. The cosine is clamped so polar inputs stay finite.
func MetersToDegreesLon(m, lat float64) float64 {
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	return m / (EarthRadiusM * cos) * 180 / math.Pi
}

// pointToSegmentM returns the distance in meters from point p to the
// segment (a, b). Coordinates are lon/lat; the computation uses a local
// equirectangular frame anchored at p's latitude, which is accurate for
// the sub-kilometer to tens-of-kilometers ranges this tool works at.
func pointToSegmentM(p, a, b geom.Coord) float64 {
	cos := math.Cos(p[1] * math.Pi / 180)
	toMeters := func(c geom.Coord) (x, y float64) {
		x = (c[0] - p[0]) * cos * EarthRadiusM * math.Pi / 180
		y = (c[1] - p[1]) * EarthRadiusM * math.Pi / 180
		return x, y
	}

	ax, ay := toMeters(a)
	bx, by := toMeters(b)

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}

	// Projection of p (origin) onto the segment, clamped to [0, 1].
	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(cx, cy)
}

// PointToGeometry returns the minimum distance in meters from a lon/lat
// point to a geometry. Points inside a polygon are at distance zero.
func PointToGeometry(lon, lat float64, g geom.T) float64 {
	p := geom.Coord{lon, lat}

	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		return Haversine(lat, lon, c[1], c[0])
	case *geom.MultiPoint:
		min := math.Inf(1)
		for i := 0; i < t.NumPoints(); i++ {
			c := t.Point(i).Coords()
			if d := Haversine(lat, lon, c[1], c[0]); d < min {
				min = d
			}
		}
		return min
	case *geom.LineString:
		return pointToCoordsM(p, t.Coords())
	case *geom.MultiLineString:
		min := math.Inf(1)
		for i := 0; i < t.NumLineStrings(); i++ {
			if d := pointToCoordsM(p, t.LineString(i).Coords()); d < min {
				min = d
			}
		}
		return min
	case *geom.Polygon:
		return pointToPolygonM(p, t)
	case *geom.MultiPolygon:
		min := math.Inf(1)
		for i := 0; i < t.NumPolygons(); i++ {
			if d := pointToPolygonM(p, t.Polygon(i)); d < min {
				min = d
			}
			if min == 0 {
				return 0
			}
		}
		return min
	default:
		return math.Inf(1)
	}
}

// pointToCoordsM returns the minimum distance from p to the polyline
// through coords.
func pointToCoordsM(p geom.Coord, coords []geom.Coord) float64 {
	if len(coords) == 0 {
		return math.Inf(1)
	}
	if len(coords) == 1 {
		return Haversine(p[1], p[0], coords[0][1], coords[0][0])
	}
	min := math.Inf(1)
	for i := 0; i+1 < len(coords); i++ {
		if d := pointToSegmentM(p, coords[i], coords[i+1]); d < min {
			min = d
		}
	}
	return min
}

// pointToPolygonM returns the distance from p to a polygon: zero when the
// point lies inside the shell and outside all holes, otherwise the
// distance to the nearest ring.
func pointToPolygonM(p geom.Coord, poly *geom.Polygon) float64 {
	if poly.NumLinearRings() == 0 {
		return math.Inf(1)
	}

	shell := poly.LinearRing(0)
	inside := xy.IsPointInRing(poly.Layout(), p, shell.FlatCoords())
	if inside {
		for i := 1; i < poly.NumLinearRings(); i++ {
			if xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(i).FlatCoords()) {
				inside = false
				break
			}
		}
	}
	if inside {
		return 0
	}

	min := math.Inf(1)
	for i := 0; i < poly.NumLinearRings(); i++ {
		if d := pointToCoordsM(p, poly.LinearRing(i).Coords()); d < min {
			min = d
		}
	}
	return min
}

// GeometryWithinDistance reports whether geometry g comes within maxM
// meters of geometry b. Vertices of each geometry are tested against
// the full edges and interior of the other, so a long edge of g passing
// near b between two distant vertices is still caught, as is b sitting
// entirely inside a large polygon of g. Two sparse geometries whose
// edges approach only away from every vertex can still be missed;
// building and boundary layers are noded far more densely than any
// useful maxM.
func GeometryWithinDistance(g, b geom.T, maxM float64) bool {
	if g == nil || b == nil {
		return false
	}
	for _, c := range vertices(g) {
		if PointToGeometry(c[0], c[1], b) <= maxM {
			return true
		}
	}
	for _, c := range vertices(b) {
		if PointToGeometry(c[0], c[1], g) <= maxM {
			return true
		}
	}
	return false
}

// vertices returns every coordinate of a geometry as lon/lat pairs.
func vertices(g geom.T) []geom.Coord {
	flat := g.FlatCoords()
	stride := g.Stride()
	if stride < 2 {
		return nil
	}
	coords := make([]geom.Coord, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		coords = append(coords, geom.Coord{flat[i], flat[i+1]})
	}
	return coords
}
