package regions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"crimedb/crawler/core"
	"crimedb/crawler/geocode"
	"crimedb/crawler/proj"
	"crimedb/crawler/socrata"
)

// Dallas, TX. Incidents come from the city's Socrata dataset. Rows are
// keyed on servicenum and cached in a single incidents file, like the
// county crawl. (PointX, PointY) is NAD83 state plane (Texas North
// Central, US feet); this is a guess that checks out when spot-checking
// a few locations against their geocoded addresses.
const (
	dallasSocrataHost    = "www.dallasopendata.com"
	dallasSocrataDataset = "tbnj-w5hb"
)

type dallasRegion struct {
	base

	client *socrata.Client
	tz     *time.Location
}

func newDallas(b base, tz *time.Location) *dallasRegion {
	return &dallasRegion{
		base:   b,
		client: socrata.New(dallasSocrataHost, dallasSocrataDataset),
		tz:     tz,
	}
}

func (r *dallasRegion) HumanName() string { return "Dallas, TX" }
func (r *dallasRegion) HumanURL() string  { return "http://www.dallaspolice.net/" }

func (r *dallasRegion) incidentsPath() (string, error) {
	dir, err := r.rawDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "incidents"), nil
}

// Download appends rows with unseen service numbers to the incidents
// file.
func (r *dallasRegion) Download(ctx context.Context) error {
	path, err := r.incidentsPath()
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	if err := eachIncidentLine(path, func(line []byte) error {
		var row socrata.Row
		if err := json.Unmarshal(line, &row); err != nil {
			return err
		}
		seen[stringField(row, "servicenum")] = true
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
	err = r.client.Rows(ctx, func(row socrata.Row) error {
		if seen[stringField(row, "servicenum")] {
			return nil
		}
		data, err := json.Marshal(row)
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

	log.Infof("region dallas: %d new incidents", added)
	return out.Close()
}

// Process replays the incidents file into per-month intermediate files.
func (r *dallasRegion) Process(ctx context.Context, _ geocode.Geocoder) error {
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
		var row socrata.Row
		if err := json.Unmarshal(line, &row); err != nil {
			return err
		}

		var t time.Time
		if ts := stringField(row, "startdatetime"); ts != "" {
			parsed, err := socrata.ParseFloatingTimestamp(ts, r.tz)
			if err != nil {
				log.Warnf("region dallas: unparseable start time %q", ts)
			} else {
				t = parsed
			}
		}

		var loc *core.Point
		x, okX := floatField(row, "pointx")
		y, okY := floatField(row, "pointy")
		if okX && okY {
			lon, lat := proj.TexasNorthCentral.Inverse(x, y)
			loc = r.clip(lon, lat)
		}

		return w.Write(core.Crime{
			Description: stringField(row, "offincident"),
			Time:        t,
			Location:    loc,
		})
	}); err != nil {
		return err
	}

	return w.Close()
}
