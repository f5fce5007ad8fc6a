package tiles

import (
	geojson "github.com/paulmach/go.geojson"
)

// RenderBlock renders the block for tile (zoom, x, y) as GeoJSON features:
// one closed rectangle per populated sub-cell, carrying its count in the
// "crime_count" property. The tile's bounding box is subdivided into a
// 2^zoomDepth x 2^zoomDepth grid; empty sub-cells produce no feature.
// Output order is fixed (column-major over the sub-grid) so identical input
// renders identically.
func RenderBlock(blocks Blocks, zoom, x, y, zoomDepth int) []*geojson.Feature {
	block := blocks[TileKey{Zoom: zoom, X: x, Y: y}]
	if len(block) == 0 {
		return nil
	}

	nwLon, nwLat := ToPoint(x, y, zoom)
	seLon, seLat := ToPoint(x+1, y+1, zoom)

	span := 1 << uint(zoomDepth)
	lonWidth := (seLon - nwLon) / float64(span)
	latWidth := (seLat - nwLat) / float64(span)

	features := make([]*geojson.Feature, 0, len(block))
	for xx := 0; xx < span; xx++ {
		for yy := 0; yy < span; yy++ {
			count, ok := block[Cell{xx, yy}]
			if !ok {
				continue
			}

			lonMin := nwLon + float64(xx)*lonWidth
			lonMax := nwLon + float64(xx+1)*lonWidth
			latMin := nwLat + float64(yy)*latWidth
			latMax := nwLat + float64(yy+1)*latWidth

			f := geojson.NewPolygonFeature([][][]float64{{
				{lonMin, latMin},
				{lonMax, latMin},
				{lonMax, latMax},
				{lonMin, latMax},
				{lonMin, latMin},
			}})
			f.SetProperty("crime_count", count)
			features = append(features, f)
		}
	}

	return features
}
