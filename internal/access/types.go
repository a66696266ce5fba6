// Package access computes per-building accessibility metrics: counts of
// amenities by category and trees within a fixed radius of each building
// centroid.
package access

import "strings"

// Property names written onto building features.
const (
	PropBuildingID   = "building_id"
	PropNumAmenities = "num_amenities"
	PropNumTrees     = "num_trees"
	PropAccessLevel  = "access_level"
	PropAmenityType  = "amenity_type"

	// amenityPropPrefix prefixes the per-category count properties.
	amenityPropPrefix = "amen_"
)

// NormalizeType canonicalizes a raw amenity category value: trimmed,
// lowercased, spaces and slashes folded to underscores. Returns "" for
// values that carry no category ("", "nan", "null", "<nil>").
func NormalizeType(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", "nan", "null", "<nil>":
		return ""
	}
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}

// CountProperty returns the building property name for an amenity category.
func CountProperty(amenityType string) string {
	return amenityPropPrefix + amenityType
}

// Access level classification constants.
const (
	LevelHigh = "high"
	LevelMid  = "medium"
	LevelLow  = "low"
	LevelNone = "none"
)

// Classification thresholds (amenities within the analysis radius).
const (
	highAmenityThreshold = 10
	midAmenityThreshold  = 3
)

// Level returns the accessibility classification for a building.
// Rules:
//   - high: at least 10 amenities in radius
//   - medium: at least 3 amenities in radius
//   - low: at least 1 amenity or 1 tree in radius
//   - none: nothing in radius
func Level(numAmenities, numTrees int) string {
	switch {
	case numAmenities >= highAmenityThreshold:
		return LevelHigh
	case numAmenities >= midAmenityThreshold:
		return LevelMid
	case numAmenities > 0 || numTrees > 0:
		return LevelLow
	default:
		return LevelNone
	}
}
