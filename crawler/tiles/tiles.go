// Package tiles aggregates crime locations into slippy-map tile grids and
// renders them as GeoJSON squares for the map front end.
//
// Tile addressing follows the standard slippy scheme: at zoom z the world is
// a 2^z x 2^z grid of Web Mercator tiles.
// See http://wiki.openstreetmap.org/wiki/Slippy_map_tilenames.
package tiles

import (
	"fmt"
	"math"
)

// FromPoint returns the (x, y) tile coordinates containing the given WGS84
// point at the given zoom level. Coordinates that land exactly on a tile
// boundary truncate to the higher-indexed tile; results on the world edge
// are clamped into [0, 2^zoom). The projection is singular at the poles, so
// |lat| >= 90 is an error.
func FromPoint(lon, lat float64, zoom int) (int, int, error) {
	if math.Abs(lat) >= 90 {
		return 0, 0, fmt.Errorf("latitude %v is not projectable", lat)
	}

	n := math.Exp2(float64(zoom))

	x := tileIndex((lon + 180.0) / 360.0 * n)

	latRad := lat * math.Pi / 180.0
	y := tileIndex((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)

	max := int(n) - 1
	if x < 0 {
		x = 0
	} else if x > max {
		x = max
	}
	if y < 0 {
		y = 0
	} else if y > max {
		y = max
	}

	return x, y, nil
}

// boundarySnap absorbs the float error left by inverting the mercator
// formulas. Without it a tile's own north-west corner can project a hair
// below the boundary integer and truncate into the neighboring tile.
const boundarySnap = 1e-9

func tileIndex(v float64) int {
	if r := math.Round(v); math.Abs(v-r) < boundarySnap {
		return int(r)
	}
	return int(math.Floor(v))
}

// ToPoint returns the WGS84 (lon, lat) of the north-west corner of the given
// tile. It is the inverse of FromPoint in the sense that the returned point
// projects back onto the same tile.
func ToPoint(x, y, zoom int) (float64, float64) {
	n := math.Exp2(float64(zoom))
	lon := float64(x)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1.0 - 2.0*float64(y)/n)))
	lat := latRad * 180.0 / math.Pi
	return lon, lat
}
