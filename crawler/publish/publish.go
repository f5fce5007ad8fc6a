// Package publish renders a region's processed crimes into the static
// file tree served by www: per-month crime files, region metadata, and
// the pre-aggregated count tiles.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	geojson "github.com/paulmach/go.geojson"

	"crimedb/api"
	"crimedb/crawler/core"
	"crimedb/crawler/regions"
	"crimedb/crawler/tiles"
)

const (
	DefaultZoom      = 16
	DefaultMinZoom   = 8
	DefaultZoomDepth = 4
)

// Publisher writes one region's published tree under OutDir/<region>/.
type Publisher struct {
	OutDir string

	// Zoom is the finest aggregation level; the tile tree covers base
	// zooms [MinZoom, Zoom-ZoomDepth], each tile holding sub-counts
	// ZoomDepth levels finer.
	Zoom      int
	MinZoom   int
	ZoomDepth int

	// Now is stubbed in tests.
	Now func() time.Time
}

func New(outDir string) *Publisher {
	return &Publisher{
		OutDir:    outDir,
		Zoom:      DefaultZoom,
		MinZoom:   DefaultMinZoom,
		ZoomDepth: DefaultZoomDepth,
		Now:       time.Now,
	}
}

// Publish renders the region's current intermediate data.
func (p *Publisher) Publish(r regions.Region) error {
	dir := filepath.Join(p.OutDir, r.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	now := p.Now().UTC().Format(core.TimeFormat)

	byMonth := map[string][]core.Crime{}
	var points tiles.Points
	var earliest, latest time.Time

	if err := r.EachCrime(func(c core.Crime) error {
		key := regions.UnknownMonth
		if !c.Time.IsZero() {
			key = c.Time.Format("2006-01")
			if earliest.IsZero() || c.Time.Before(earliest) {
				earliest = c.Time
			}
			if c.Time.After(latest) {
				latest = c.Time
			}
		}
		byMonth[key] = append(byMonth[key], c)

		if c.Location != nil {
			points = append(points, [2]float64{c.Location.Lon, c.Location.Lat})
		}
		return nil
	}); err != nil {
		return err
	}

	for month, crimes := range byMonth {
		if err := writeJSON(
			filepath.Join(dir, month+".json"),
			api.Month{UpdateTime: now, Crimes: crimes}); err != nil {
			return err
		}
	}

	meta := api.Meta{
		Name:       r.Name(),
		HumanName:  r.HumanName(),
		HumanURL:   r.HumanURL(),
		UpdateTime: now,
	}
	if !earliest.IsZero() {
		meta.DateRange = []string{
			earliest.Format(core.TimeFormat),
			latest.Format(core.TimeFormat),
		}
	}
	if shape := r.Shape(); shape != nil {
		meta.Geometry = shape.Geometry
	}
	if err := writeJSON(filepath.Join(dir, api.MetaFileName), meta); err != nil {
		return err
	}

	if err := p.publishTiles(dir, points); err != nil {
		return err
	}

	log.Infof("published %s: %d months, %d located crimes", r.Name(), len(byMonth), len(points))
	return nil
}

// publishTiles writes grid/{z}/{x}/{y}.json, one feature collection per
// retile block.
func (p *Publisher) publishTiles(dir string, points tiles.Points) error {
	grid := tiles.BuildGrid(&points, p.Zoom)

	pyramid, err := tiles.BuildPyramid(grid, p.Zoom, p.MinZoom)
	if err != nil {
		return err
	}
	blocks, err := tiles.Partition(pyramid, p.ZoomDepth)
	if err != nil {
		return err
	}

	for key := range blocks {
		features := tiles.RenderBlock(blocks, key.Zoom, key.X, key.Y, p.ZoomDepth)

		fc := geojson.NewFeatureCollection()
		for _, f := range features {
			fc.AddFeature(f)
		}

		path := filepath.Join(dir, "grid",
			fmt.Sprintf("%d", key.Zoom), fmt.Sprintf("%d", key.X),
			fmt.Sprintf("%d.json", key.Y))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := writeJSON(path, fc); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
