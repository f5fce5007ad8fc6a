package regions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"crimedb/crawler/arcgis"
	"crimedb/crawler/core"
	"crimedb/crawler/geocode"
	"crimedb/crawler/proj"
)

// St. Louis County. Incidents come from the county's ArcGIS layer.
// OBJECTIDs get re-used when incidents are deleted, so the crawl is
// keyed on GlobalIDs, which are unique and random. Every feature ever
// seen is appended to a single incidents file; it is both the record of
// known GlobalIDs and the cache for re-processing.
const stlcoQueryURL = "http://maps.stlouisco.com/arcgis/rest/services/" +
	"Police/AGS_Crimes/MapServer/0/query"

type stlCountyRegion struct {
	base

	client *arcgis.Client
	tz     *time.Location
}

func newSTLCounty(b base, tz *time.Location) *stlCountyRegion {
	return &stlCountyRegion{base: b, client: arcgis.New(stlcoQueryURL), tz: tz}
}

func (r *stlCountyRegion) HumanName() string { return "St. Louis County, MO" }
func (r *stlCountyRegion) HumanURL() string {
	return "http://www.stlouisco.com/LawandPublicSafety/PoliceDepartment"
}

func (r *stlCountyRegion) incidentsPath() (string, error) {
	dir, err := r.rawDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "incidents"), nil
}

// Download appends any features with unseen GlobalIDs to the incidents
// file.
func (r *stlCountyRegion) Download(ctx context.Context) error {
	path, err := r.incidentsPath()
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	if err := eachIncidentLine(path, func(line []byte) error {
		var f arcgis.Feature
		if err := json.Unmarshal(line, &f); err != nil {
			return err
		}
		seen[f.GlobalID()] = true
		return nil
	}); err != nil {
		return err
	}

	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	added := 0
	err = r.client.FeaturesSince(ctx, arcgis.ZeroGlobalID, func(f arcgis.Feature) error {
		if seen[f.GlobalID()] {
			return nil
		}
		data, err := json.Marshal(&f)
		if err != nil {
			return err
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		return err
	}

	log.Infof("region stlco: %d new incidents", added)
	return out.Close()
}

// Process replays the incidents file into per-month intermediate files.
// The layer serves geometry in web mercator (wkid 102100).
func (r *stlCountyRegion) Process(ctx context.Context, _ geocode.Geocoder) error {
	path, err := r.incidentsPath()
	if err != nil {
		return err
	}

	w, err := r.newIntermediateWriter()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := eachIncidentLine(path, func(line []byte) error {
		var f arcgis.Feature
		if err := json.Unmarshal(line, &f); err != nil {
			return err
		}

		var loc *core.Point
		if f.Geometry != nil {
			lon, lat := proj.WebMercatorInverse(f.Geometry.X, f.Geometry.Y)
			loc = r.clip(lon, lat)
		}

		var t time.Time
		if ms, ok := floatField(f.Attributes, "Date"); ok {
			t = time.UnixMilli(int64(ms)).In(r.tz)
		}

		return w.Write(core.Crime{
			Description: stringField(f.Attributes, "Offense"),
			Time:        t,
			Location:    loc,
		})
	}); err != nil {
		return err
	}

	return w.Close()
}

// eachIncidentLine calls fn for every line of an NDJSON incidents file.
// A missing file is treated as empty.
func eachIncidentLine(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return scanner.Err()
}
