// Package geocode resolves street addresses to WGS84 points.
package geocode

import (
	"context"

	geojson "github.com/paulmach/go.geojson"
)

// Shape restricts geocoding results to a geographic region.
type Shape interface {
	Contains(lon, lat float64) bool
	Bounds() (minLon, minLat, maxLon, maxLat float64)
}

// Geocoder resolves a batch of free-form location strings. The result slice
// has one entry per input, in input order; entries that could not be
// resolved are nil. Geocoders must not fail the whole batch because single
// addresses are unresolvable.
type Geocoder interface {
	Geocode(ctx context.Context, locations []string) ([]*geojson.Geometry, error)
}

// Null is a geocoder that resolves nothing. Useful for runs where geocoding
// is disabled or no provider key is configured.
type Null struct{}

func (Null) Geocode(ctx context.Context, locations []string) ([]*geojson.Geometry, error) {
	return make([]*geojson.Geometry, len(locations)), nil
}
