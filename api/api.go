// Package api defines the wire format of published CrimeDB files and the
// endpoints the www service serves them from.
package api

import (
	geojson "github.com/paulmach/go.geojson"

	"crimedb/crawler/core"
)

const (
	RegionsEndpoint = "/regions"
	MetaEndpoint    = "/regions/:region/meta.json"
	MonthEndpoint   = "/regions/:region/:month"
	TileEndpoint    = "/regions/:region/grid/:z/:x/:y"
)

// MetaFileName is the per-region metadata file.
const MetaFileName = "meta.json"

// Meta describes one published region.
type Meta struct {
	Name      string `json:"name"`
	HumanName string `json:"human_name"`
	HumanURL  string `json:"human_url"`

	// UpdateTime is when the region was last published, RFC3339.
	UpdateTime string `json:"update_time"`

	// DateRange is the [earliest, latest] pair of incident times,
	// RFC3339. Empty until the region has a dated crime.
	DateRange []string `json:"date_range,omitempty"`

	// Geometry is the region boundary.
	Geometry *geojson.Geometry `json:"geometry,omitempty"`
}

// Month is one YYYY-MM.json crime file.
type Month struct {
	UpdateTime string       `json:"update_time"`
	Crimes     []core.Crime `json:"crimes"`
}

// RegionList is the /regions response body.
type RegionList struct {
	Regions []Meta `json:"regions"`
}
