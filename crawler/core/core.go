// Package core defines the normalized crime incident record shared by all
// regions and the feed files.
package core

import (
	"encoding/json"
	"fmt"
	"time"

	geojson "github.com/paulmach/go.geojson"
)

// TimeFormat is the timestamp layout used in all published JSON.
const TimeFormat = time.RFC3339

// Point is a WGS84 (lon, lat) pair in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// Crime is a single normalized incident. Location is nil when the incident
// could not be placed (bad source coordinates, failed geocoding, or a
// location outside the region's boundary).
type Crime struct {
	Description string
	Time        time.Time
	Location    *Point
}

type crimeJSON struct {
	Description string            `json:"description"`
	Time        string            `json:"time"`
	Geo         *geojson.Geometry `json:"geo,omitempty"`
}

// MarshalJSON renders the crime in the published feed shape: an RFC3339
// time plus an optional GeoJSON Point under "geo".
func (c Crime) MarshalJSON() ([]byte, error) {
	jo := crimeJSON{
		Description: c.Description,
		Time:        c.Time.Format(TimeFormat),
	}
	if c.Location != nil {
		jo.Geo = geojson.NewPointGeometry([]float64{c.Location.Lon, c.Location.Lat})
	}
	return json.Marshal(jo)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Crime) UnmarshalJSON(data []byte) error {
	var jo crimeJSON
	if err := json.Unmarshal(data, &jo); err != nil {
		return err
	}

	t, err := time.Parse(TimeFormat, jo.Time)
	if err != nil {
		return fmt.Errorf("bad crime time %q: %w", jo.Time, err)
	}

	c.Description = jo.Description
	c.Time = t
	c.Location = nil
	if jo.Geo != nil {
		if !jo.Geo.IsPoint() || len(jo.Geo.Point) < 2 {
			return fmt.Errorf("bad crime geometry type %q", jo.Geo.Type)
		}
		c.Location = &Point{Lon: jo.Geo.Point[0], Lat: jo.Geo.Point[1]}
	}
	return nil
}
