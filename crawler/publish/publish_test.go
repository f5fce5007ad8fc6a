package publish

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jknair0/beforeeach"
	geojson "github.com/paulmach/go.geojson"

	"crimedb/api"
	"crimedb/crawler/core"
	"crimedb/crawler/geocode"
	"crimedb/crawler/regions"
)

var outDir string

func setUp() {
	outDir, _ = os.MkdirTemp("", "publish_test")
}

func tearDown() {
	os.RemoveAll(outDir)
}

var it = beforeeach.Create(setUp, tearDown)

// stubRegion serves a fixed crime list.
type stubRegion struct {
	name   string
	crimes []core.Crime
	shape  *regions.Shape
}

func (r *stubRegion) Name() string { return r.name }
func (r *stubRegion) HumanName() string { return "Test Town, MO" }
func (r *stubRegion) HumanURL() string { return "http://example.com/" }
func (r *stubRegion) Shape() *regions.Shape { return r.shape }
func (r *stubRegion) Download(context.Context) error {
	return nil
}
func (r *stubRegion) Process(context.Context, geocode.Geocoder) error {
	return nil
}

func (r *stubRegion) EachCrime(fn func(core.Crime) error) error {
	for _, c := range r.crimes {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func testRegion(t *testing.T) *stubRegion {
	t.Helper()
	shape, err := regions.NewShape(geojson.NewPolygonGeometry([][][]float64{{
		{-90.5, 38.4},
		{-90.0, 38.4},
		{-90.0, 38.8},
		{-90.5, 38.8},
		{-90.5, 38.4},
	}}))
	if err != nil {
		t.Fatalf("NewShape: %v", err)
	}

	mar := time.Date(2014, 3, 15, 12, 30, 0, 0, time.UTC)
	apr := time.Date(2014, 4, 2, 8, 0, 0, 0, time.UTC)
	return &stubRegion{
		name:  "test",
		shape: shape,
		crimes: []core.Crime{
			{Description: "LARCENY", Time: mar, Location: &core.Point{Lon: -90.25, Lat: 38.6}},
			{Description: "ASSAULT", Time: mar.Add(24 * time.Hour), Location: &core.Point{Lon: -90.26, Lat: 38.61}},
			{Description: "BURGLARY", Time: apr},
			{Description: "VANDALISM"},
		},
	}
}

func readJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Unmarshal %s: %v", path, err)
	}
}

func testPublisher() *Publisher {
	p := New(outDir)
	p.Zoom = 2
	p.MinZoom = 0
	p.ZoomDepth = 1
	p.Now = func() time.Time {
		return time.Date(2014, 5, 1, 0, 0, 0, 0, time.UTC)
	}
	return p
}

func TestPublishMonthFiles(t *testing.T) {
	it(func() {
		r := testRegion(t)
		if err := testPublisher().Publish(r); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		dir := filepath.Join(outDir, "test")

		var march api.Month
		readJSON(t, filepath.Join(dir, "2014-03.json"), &march)
		if len(march.Crimes) != 2 {
			t.Errorf("2014-03.json holds %d crimes, want 2", len(march.Crimes))
		}
		if march.UpdateTime != "2014-05-01T00:00:00Z" {
			t.Errorf("update_time = %q", march.UpdateTime)
		}

		var april api.Month
		readJSON(t, filepath.Join(dir, "2014-04.json"), &april)
		if len(april.Crimes) != 1 || april.Crimes[0].Description != "BURGLARY" {
			t.Errorf("2014-04.json: %+v", april.Crimes)
		}

		var unknown api.Month
		readJSON(t, filepath.Join(dir, "UNKNOWN.json"), &unknown)
		if len(unknown.Crimes) != 1 || unknown.Crimes[0].Description != "VANDALISM" {
			t.Errorf("UNKNOWN.json: %+v", unknown.Crimes)
		}
	})
}

func TestPublishMeta(t *testing.T) {
	it(func() {
		r := testRegion(t)
		if err := testPublisher().Publish(r); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		var meta api.Meta
		readJSON(t, filepath.Join(outDir, "test", api.MetaFileName), &meta)

		if meta.Name != "test" || meta.HumanName != "Test Town, MO" {
			t.Errorf("identity: %s / %s", meta.Name, meta.HumanName)
		}
		if meta.UpdateTime != "2014-05-01T00:00:00Z" {
			t.Errorf("update_time = %q", meta.UpdateTime)
		}
		want := []string{"2014-03-15T12:30:00Z", "2014-04-02T08:00:00Z"}
		if len(meta.DateRange) != 2 || meta.DateRange[0] != want[0] || meta.DateRange[1] != want[1] {
			t.Errorf("date_range = %v, want %v", meta.DateRange, want)
		}
		if meta.Geometry == nil || !meta.Geometry.IsPolygon() {
			t.Errorf("geometry missing from meta: %+v", meta.Geometry)
		}
	})
}

func TestPublishTiles(t *testing.T) {
	it(func() {
		r := testRegion(t)
		if err := testPublisher().Publish(r); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		// Both located crimes are in the northwest quadrant, so the lone
		// zoom-0 tile must exist and its sub-counts must total 2.
		data, err := os.ReadFile(filepath.Join(outDir, "test", "grid", "0", "0", "0.json"))
		if err != nil {
			t.Fatalf("reading zoom-0 tile: %v", err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			t.Fatalf("UnmarshalFeatureCollection: %v", err)
		}

		total := 0.0
		for _, f := range fc.Features {
			count, ok := f.Properties["crime_count"].(float64)
			if !ok {
				t.Fatalf("feature without crime_count: %+v", f.Properties)
			}
			total += count
		}
		if total != 2 {
			t.Errorf("zoom-0 tile counts total %v, want 2", total)
		}

		// Base zooms run [MinZoom, Zoom-ZoomDepth]; zoom 2 is fine detail
		// inside the zoom-1 tiles, not a tile directory of its own.
		if _, err := os.Stat(filepath.Join(outDir, "test", "grid", "1")); err != nil {
			t.Errorf("expected zoom-1 tile directory: %v", err)
		}
		if _, err := os.Stat(filepath.Join(outDir, "test", "grid", "2")); !os.IsNotExist(err) {
			t.Errorf("unexpected zoom-2 tile directory")
		}
	})
}

func TestPublishEmptyRegion(t *testing.T) {
	it(func() {
		r := &stubRegion{name: "empty"}
		if err := testPublisher().Publish(r); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		var meta api.Meta
		readJSON(t, filepath.Join(outDir, "empty", api.MetaFileName), &meta)
		if len(meta.DateRange) != 0 {
			t.Errorf("empty region should have no date_range: %v", meta.DateRange)
		}
		if meta.Geometry != nil {
			t.Errorf("empty region should have no geometry")
		}
	})
}
