// The crawler downloads crime data for one region, normalizes it, and
// publishes the JSON file tree served by www.
package main

import (
	"context"
	"flag"
	"strings"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"crimedb/common"
	"crimedb/crawler/geocode"
	"crimedb/crawler/publish"
	"crimedb/crawler/regions"
)

var (
	regionName = flag.String("region", "",
		"Region to crawl, one of: "+strings.Join(regions.Names(), ", ")+".")
	workDir  = flag.String("work_dir", "work", "Directory for raw and intermediate data.")
	outDir   = flag.String("out_dir", "www-data", "Directory to publish JSON files into.")
	shapeDir = flag.String("shape_dir", "shapes",
		"Directory holding <region>.geojson boundary files.")

	geocoderName = flag.String("geocoder", "null", "Geocoder to use: null or mapquest.")
	mapquestKey  = flag.String("mapquest_key", "", "MapQuest API key; defaults to $MAPQUEST_KEY.")
	mapquestQPS  = flag.Float64("mapquest_qps", 10, "MapQuest request rate limit.")

	noDownload = flag.Bool("no_download", false, "Skip downloading, reprocess cached data only.")

	zoom      = flag.Int("zoom", publish.DefaultZoom, "Finest tile aggregation zoom level.")
	minZoom   = flag.Int("min_zoom", publish.DefaultMinZoom, "Coarsest tile zoom level.")
	zoomDepth = flag.Int("zoom_depth", publish.DefaultZoomDepth,
		"Zoom levels of sub-counts per published tile.")

	logLevel = flag.String("log_level", "info", "Log level: debug, info, warn, error.")
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file found: %v", err)
	}
	flag.Parse()
	common.SetLogLevel(*logLevel)

	if *regionName == "" {
		log.Fatalf("--region is required (one of: %s)", strings.Join(regions.Names(), ", "))
	}

	region, err := regions.New(*regionName, regions.Config{
		WorkDir:  *workDir,
		ShapeDir: *shapeDir,
	})
	if err != nil {
		log.Fatalf("Creating region: %v", err)
	}

	geocoder, err := newGeocoder(region)
	if err != nil {
		log.Fatalf("Creating geocoder: %v", err)
	}

	ctx := context.Background()

	if *noDownload {
		log.Infof("Skipping download for %s", region.Name())
	} else {
		log.Infof("Downloading %s", region.Name())
		if err := region.Download(ctx); err != nil {
			log.Fatalf("Downloading %s: %v", region.Name(), err)
		}
	}

	log.Infof("Processing %s", region.Name())
	if err := region.Process(ctx, geocoder); err != nil {
		log.Fatalf("Processing %s: %v", region.Name(), err)
	}

	p := publish.New(*outDir)
	p.Zoom = *zoom
	p.MinZoom = *minZoom
	p.ZoomDepth = *zoomDepth
	if err := p.Publish(region); err != nil {
		log.Fatalf("Publishing %s: %v", region.Name(), err)
	}
}

func newGeocoder(region regions.Region) (geocode.Geocoder, error) {
	switch *geocoderName {
	case "null":
		return geocode.Null{}, nil
	case "mapquest":
		key := *mapquestKey
		if key == "" {
			key = common.EnvStr([]string{"MAPQUEST_KEY"}, "")
		}
		if key == "" {
			log.Fatalf("--geocoder=mapquest needs --mapquest_key or $MAPQUEST_KEY")
		}

		// Keep a typed nil out of the interface; the geocoder treats
		// a non-nil Shape as usable.
		var shape geocode.Shape
		if s := region.Shape(); s != nil {
			shape = s
		}
		return geocode.New(key, shape, *mapquestQPS), nil
	}
	log.Fatalf("Unknown geocoder %q", *geocoderName)
	return nil, nil
}
