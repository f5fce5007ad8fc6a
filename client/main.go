// Dev/test client for dev/test/troubleshooting against a running www
// service.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apex/log"

	"crimedb/api"
)

var (
	serviceURL = flag.String("service_url", "http://127.0.0.1:8080", "www service to poke.")
	region     = flag.String("region", "stl", "Region to fetch.")
	month      = flag.String("month", "2014-03", "Month file to fetch.")
	tile       = flag.String("tile", "8/62/96", "z/x/y tile to fetch.")
)

func get(path string) []byte {
	url := *serviceURL + path
	log.Infof("GET %s", url)

	resp, err := http.Get(url)
	if err != nil {
		log.Errorf("Failed to call the server: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Infof("Done, %s: %d bytes", resp.Status, len(body))
	return body
}

func doRegions() {
	body := get(api.RegionsEndpoint)
	if body == nil {
		return
	}

	var list api.RegionList
	if err := json.Unmarshal(body, &list); err != nil {
		log.Errorf("Bad region list: %v", err)
		return
	}
	for _, meta := range list.Regions {
		log.Infof("  %s (%s), updated %s", meta.Name, meta.HumanName, meta.UpdateTime)
	}
}

func doMeta() {
	get(fmt.Sprintf("/regions/%s/meta.json", *region))
}

func doMonth() {
	body := get(fmt.Sprintf("/regions/%s/%s.json", *region, *month))
	if body == nil {
		return
	}

	var m api.Month
	if err := json.Unmarshal(body, &m); err != nil {
		log.Errorf("Bad month file: %v", err)
		return
	}
	log.Infof("  %d crimes", len(m.Crimes))
}

func doTile() {
	get(fmt.Sprintf("/regions/%s/grid/%s", *region, strings.TrimPrefix(*tile, "/")))
}

func main() {
	flag.Parse()

	doRegions()
	doMeta()
	doMonth()
	doTile()
}
