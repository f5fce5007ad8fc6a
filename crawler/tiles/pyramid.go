package tiles

import (
	"fmt"
)

// Pyramid maps zoom level to the Grid at that level. Each level below the
// seed is built by summing every 2x2 block of child cells into one parent
// cell, so per-level totals are conserved.
type Pyramid map[int]Grid

// MinZoom returns the coarsest zoom level present.
func (p Pyramid) MinZoom() int {
	first := true
	min := 0
	for z := range p {
		if first || z < min {
			min = z
			first = false
		}
	}
	return min
}

// MaxZoom returns the finest zoom level present.
func (p Pyramid) MaxZoom() int {
	first := true
	max := 0
	for z := range p {
		if first || z > max {
			max = z
			first = false
		}
	}
	return max
}

// BuildPyramid rolls the given grid at the given zoom level up to minZoom.
// The seed level holds an independent copy of the input grid; the input is
// never mutated. Requires 0 <= minZoom < zoom.
func BuildPyramid(grid Grid, zoom, minZoom int) (Pyramid, error) {
	if minZoom < 0 {
		return nil, fmt.Errorf("min zoom %d must be >= 0", minZoom)
	}
	if minZoom >= zoom {
		return nil, fmt.Errorf("min zoom %d must be < zoom %d", minZoom, zoom)
	}

	pyramid := make(Pyramid, zoom-minZoom+1)
	pyramid[zoom] = grid.Clone()

	for z := zoom; z > minZoom; z-- {
		parent := make(Grid)
		for cell, count := range pyramid[z] {
			parent.Increment(cell.X/2, cell.Y/2, count)
		}
		pyramid[z-1] = parent
	}

	return pyramid, nil
}
