package access

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban95/accessmap-cli/internal/geo"
)

func TestPointIndexEmpty(t *testing.T) {
	idx := NewPointIndex()
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, idx.Within(34.79, 31.25, 100))
}

func TestPointIndexWithinExact(t *testing.T) {
	idx := NewPointIndex()

	center := struct{ lon, lat float64 }{34.79, 31.25}

	// ~55m east of center at this latitude.
	near := idx.Insert(center.lon+0.00058, center.lat)
	// ~111m north.
	edge := idx.Insert(center.lon, center.lat+0.001)
	// ~1112m north.
	far := idx.Insert(center.lon, center.lat+0.01)

	got := idx.Within(center.lon, center.lat, 100)
	assert.Contains(t, got, near)
	assert.NotContains(t, got, edge)
	assert.NotContains(t, got, far)

	got = idx.Within(center.lon, center.lat, 120)
	assert.Contains(t, got, near)
	assert.Contains(t, got, edge)
	assert.NotContains(t, got, far)
}

func TestPointIndexBoundaryInclusive(t *testing.T) {
	idx := NewPointIndex()
	id := idx.Insert(34.79, 31.25)

	d := geo.Haversine(31.25, 34.79, 31.25, 34.80)
	got := idx.Within(34.80, 31.25, d)
	assert.Contains(t, got, id, "point at exactly radius distance must be counted")
}

func TestPointIndexMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	idx := NewPointIndex()

	type pt struct{ lon, lat float64 }
	pts := make([]pt, 500)
	for i := range pts {
		pts[i] = pt{
			lon: 34.75 + rng.Float64()*0.1,
			lat: 31.20 + rng.Float64()*0.1,
		}
		require.Equal(t, i, idx.Insert(pts[i].lon, pts[i].lat))
	}

	centers := []pt{
		{34.79, 31.25},
		{34.75, 31.20},
		{34.85, 31.30},
	}
	for _, c := range centers {
		for _, radius := range []float64{50, 250, 1000, 5000} {
			var want []int
			for i, p := range pts {
				if geo.Haversine(c.lat, c.lon, p.lat, p.lon) <= radius {
					want = append(want, i)
				}
			}
			got := idx.Within(c.lon, c.lat, radius)
			sort.Ints(got)
			assert.Equal(t, want, got)
		}
	}
}
