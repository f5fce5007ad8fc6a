package regions

import (
	"fmt"
	"os"

	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
)

// Shape is a region boundary: a GeoJSON (multi)polygon indexed for fast
// point containment tests.
type Shape struct {
	Geometry *geojson.Geometry

	polygons []*s2.Polygon

	minLon, minLat float64
	maxLon, maxLat float64
}

// NewShape builds a Shape from a GeoJSON Polygon or MultiPolygon geometry.
func NewShape(geom *geojson.Geometry) (*Shape, error) {
	var polys [][][][]float64
	switch {
	case geom.IsPolygon():
		polys = [][][][]float64{geom.Polygon}
	case geom.IsMultiPolygon():
		polys = geom.MultiPolygon
	default:
		return nil, fmt.Errorf("unsupported shape geometry type: %s", geom.Type)
	}

	s := &Shape{Geometry: geom, minLon: 180, minLat: 90, maxLon: -180, maxLat: -90}
	for _, poly := range polys {
		loops := make([]*s2.Loop, 0, len(poly))
		for _, ring := range poly {
			if len(ring) < 4 {
				return nil, fmt.Errorf("degenerate ring with %d points", len(ring))
			}

			// GeoJSON rings repeat the first point; s2 loops must not.
			pts := make([]s2.Point, 0, len(ring)-1)
			for _, coord := range ring[:len(ring)-1] {
				lon, lat := coord[0], coord[1]
				pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))

				if lon < s.minLon {
					s.minLon = lon
				}
				if lon > s.maxLon {
					s.maxLon = lon
				}
				if lat < s.minLat {
					s.minLat = lat
				}
				if lat > s.maxLat {
					s.maxLat = lat
				}
			}

			loop := s2.LoopFromPoints(pts)
			// GeoJSON does not constrain ring winding; normalize so the
			// loop encloses the region rather than the rest of the planet.
			loop.Normalize()
			loops = append(loops, loop)
		}
		s.polygons = append(s.polygons, s2.PolygonFromLoops(loops))
	}

	return s, nil
}

// LoadShape reads a Shape from a GeoJSON file containing a geometry, a
// feature, or a feature collection.
func LoadShape(path string) (*Shape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// UnmarshalGeometry tolerates non-geometry bodies, so accept this
	// branch only for the types a boundary can actually be.
	if geom, err := geojson.UnmarshalGeometry(data); err == nil &&
		(geom.IsPolygon() || geom.IsMultiPolygon()) {
		return NewShape(geom)
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return NewShape(f.Geometry)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing shape %s: %w", path, err)
	}
	if len(fc.Features) == 0 || fc.Features[0].Geometry == nil {
		return nil, fmt.Errorf("shape %s has no features", path)
	}
	return NewShape(fc.Features[0].Geometry)
}

// Contains reports whether the WGS84 point is inside the region.
func (s *Shape) Contains(lon, lat float64) bool {
	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	for _, p := range s.polygons {
		if p.ContainsPoint(pt) {
			return true
		}
	}
	return false
}

// Bounds returns the shape's bounding box.
func (s *Shape) Bounds() (minLon, minLat, maxLon, maxLat float64) {
	return s.minLon, s.minLat, s.maxLon, s.maxLat
}
