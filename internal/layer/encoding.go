package layer

import (
	"strings"
	"unicode/utf8"

	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/encoding/charmap"
)

// RepairText attempts to repair garbled text produced by double UTF-8
// encoding (UTF-8 bytes misread as Latin-1 and re-saved as UTF-8, common
// in Hebrew attribute tables). Re-encoding to Latin-1 recovers the
// original UTF-8 bytes. The input is returned unchanged when it does not
// look mojibake-encoded or when the repair does not yield valid UTF-8.
func RepairText(s string) string {
	// Double-encoded Hebrew UTF-8 is dominated by the multiplication
	// sign (U+00D7), the Latin-1 reading of the 0xD7 lead byte.
	if !strings.ContainsRune(s, '×') {
		return s
	}

	repaired, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(repaired) {
		return s
	}
	return repaired
}

// RepairFeatureCollection repairs mojibake in every string property of a
// collection, in place. Returns the number of repaired values.
func RepairFeatureCollection(fc *geojson.FeatureCollection) int {
	if fc == nil {
		return 0
	}

	var repaired int
	for _, f := range fc.Features {
		for k, v := range f.Properties {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if r := RepairText(s); r != s {
				f.Properties[k] = r
				repaired++
			}
		}
	}
	return repaired
}
