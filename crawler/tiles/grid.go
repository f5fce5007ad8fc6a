package tiles

import (
	"github.com/apex/log"
)

// Cell addresses one tile within a Grid's zoom level.
type Cell struct {
	X int
	Y int
}

// Grid is a sparse histogram of point counts at a single zoom level. A cell
// that is absent has count zero; a Grid never stores an explicit zero.
type Grid map[Cell]int

// Increment adds amount to the count at (x, y).
func (g Grid) Increment(x, y, amount int) {
	if amount == 0 {
		return
	}
	g[Cell{x, y}] += amount
}

// Count returns the count at (x, y), zero if the cell is absent.
func (g Grid) Count(x, y int) int {
	return g[Cell{x, y}]
}

// Total returns the sum of all cell counts.
func (g Grid) Total() int {
	total := 0
	for _, count := range g {
		total += count
	}
	return total
}

// Clone returns an independent copy of the grid.
func (g Grid) Clone() Grid {
	c := make(Grid, len(g))
	for cell, count := range g {
		c[cell] = count
	}
	return c
}

// PointSource yields WGS84 (lon, lat) pairs one at a time. Sources may be
// one-pass; BuildGrid consumes them fully.
type PointSource interface {
	Next() (lon, lat float64, ok bool)
}

// Points adapts a slice of (lon, lat) pairs to a PointSource.
type Points [][2]float64

func (p *Points) Next() (float64, float64, bool) {
	if len(*p) == 0 {
		return 0, 0, false
	}
	pt := (*p)[0]
	*p = (*p)[1:]
	return pt[0], pt[1], true
}

// BuildGrid projects every point onto the tile grid at the given zoom level
// and counts points per tile. Points that cannot be projected (the poles)
// are skipped with a warning rather than aborting the batch.
func BuildGrid(points PointSource, zoom int) Grid {
	grid := make(Grid)
	for {
		lon, lat, ok := points.Next()
		if !ok {
			break
		}
		x, y, err := FromPoint(lon, lat, zoom)
		if err != nil {
			log.Warnf("Skipping unprojectable point (%v, %v): %v", lon, lat, err)
			continue
		}
		grid.Increment(x, y, 1)
	}
	return grid
}

// Combine returns a new Grid whose cells are the elementwise sums of the
// input grids. Combining no grids yields an empty Grid; combining one grid
// yields an independent copy.
func Combine(grids ...Grid) Grid {
	combined := make(Grid)
	for _, g := range grids {
		for cell, count := range g {
			combined.Increment(cell.X, cell.Y, count)
		}
	}
	return combined
}
