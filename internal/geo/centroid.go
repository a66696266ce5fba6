package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Centroid returns the lon/lat centroid of a geometry. Points pass
// through, polygons use the area centroid, multi-polygons use an
// area-weighted combination, and everything else falls back to the
// center of the bounding box.
func Centroid(g geom.T) (geom.Coord, error) {
	if g == nil {
		return nil, eris.New("geo: centroid of nil geometry")
	}

	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		return geom.Coord{c[0], c[1]}, nil

	case *geom.Polygon:
		if t.NumLinearRings() == 0 || len(t.FlatCoords()) == 0 {
			return nil, eris.New("geo: centroid of empty polygon")
		}
		c, err := xy.Centroid(t)
		if err != nil {
			return boundsCenter(t)
		}
		return c, nil

	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, eris.New("geo: centroid of empty multipolygon")
		}
		var sumX, sumY, sumArea float64
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			c, err := Centroid(p)
			if err != nil {
				continue
			}
			area := p.Area()
			if area < 0 {
				area = -area
			}
			if area == 0 {
				// Degenerate part; weight nominally so it still contributes.
				area = 1e-12
			}
			sumX += c[0] * area
			sumY += c[1] * area
			sumArea += area
		}
		if sumArea == 0 {
			return boundsCenter(t)
		}
		return geom.Coord{sumX / sumArea, sumY / sumArea}, nil

	default:
		return boundsCenter(g)
	}
}

func boundsCenter(g geom.T) (geom.Coord, error) {
	if len(g.FlatCoords()) == 0 {
		return nil, eris.New("geo: centroid of empty geometry")
	}
	b := g.Bounds()
	return geom.Coord{(b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2}, nil
}

// IsEmpty reports whether a geometry has no coordinates.
func IsEmpty(g geom.T) bool {
	return g == nil || len(g.FlatCoords()) == 0
}
