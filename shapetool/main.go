// shapetool extracts a region boundary from an OSM XML extract and writes
// it as a <region>.geojson file for the crawler's --shape_dir.
//
// Relation IDs come from openstreetmap.org; e.g. St. Louis City is
// relation 239387 in the Geofabrik missouri-latest extract.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"crimedb/crawler/osm"
)

var (
	osmFile    = flag.String("osm_file", "", "OSM XML extract to read.")
	relationID = flag.Int64("relation_id", 0, "Boundary relation to extract.")
	region     = flag.String("region", "", "Region name; output is <shape_dir>/<region>.geojson.")
	shapeDir   = flag.String("shape_dir", "shapes", "Directory to write the boundary file into.")
)

func main() {
	flag.Parse()

	if *osmFile == "" || *relationID == 0 || *region == "" {
		log.Fatalf("--osm_file, --relation_id and --region are required")
	}

	f, err := os.Open(*osmFile)
	if err != nil {
		log.Fatalf("Opening extract: %v", err)
	}
	defer f.Close()

	geom, err := osm.RelationShape(f, *relationID)
	if err != nil {
		log.Fatalf("Extracting relation %d: %v", *relationID, err)
	}

	data, err := geom.MarshalJSON()
	if err != nil {
		log.Fatalf("Encoding boundary: %v", err)
	}

	if err := os.MkdirAll(*shapeDir, 0o755); err != nil {
		log.Fatalf("Creating %s: %v", *shapeDir, err)
	}
	path := filepath.Join(*shapeDir, *region+".geojson")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("Writing %s: %v", path, err)
	}
	log.Infof("Wrote %s", path)
}
