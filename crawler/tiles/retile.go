package tiles

import (
	"fmt"

	"github.com/apex/log"
)

// TileKey identifies one coarse tile whose fine-grained sub-histogram is
// served as a single file.
type TileKey struct {
	Zoom int
	X    int
	Y    int
}

// Blocks maps a coarse tile to the histogram of its descendant cells at
// Zoom+zoomDepth, re-indexed so the tile's own north-west corner is (0, 0).
type Blocks map[TileKey]Grid

// Partition slices a pyramid into self-contained blocks, one per non-zero
// coarse tile at every base zoom in [MinZoom, MaxZoom-zoomDepth]. Each base
// level is produced in a single pass over the fine grid, bucketing each fine
// cell by its ancestor tile; a cell's ancestor is always populated in the
// pyramid, so no block is created for an empty coarse tile.
func Partition(pyramid Pyramid, zoomDepth int) (Blocks, error) {
	if len(pyramid) == 0 {
		return make(Blocks), nil
	}

	minZoom, maxZoom := pyramid.MinZoom(), pyramid.MaxZoom()
	if zoomDepth < 0 || zoomDepth > maxZoom-minZoom {
		return nil, fmt.Errorf(
			"zoom depth %d not in [0, %d]", zoomDepth, maxZoom-minZoom)
	}

	blocks := make(Blocks)
	span := 1 << uint(zoomDepth)

	for z := minZoom; z <= maxZoom-zoomDepth; z++ {
		log.Debugf("Partitioning zoom=%d", z)
		for cell, count := range pyramid[z+zoomDepth] {
			key := TileKey{Zoom: z, X: cell.X / span, Y: cell.Y / span}
			block, ok := blocks[key]
			if !ok {
				block = make(Grid)
				blocks[key] = block
			}
			block.Increment(cell.X-key.X*span, cell.Y-key.Y*span, count)
		}
	}

	return blocks, nil
}
