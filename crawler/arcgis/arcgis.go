// Package arcgis pages features out of ArcGIS REST map-service layers.
//
// Reference: http://resources.arcgis.com/en/help/rest/apiref/index.html
//
// OBJECTIDs get re-used when incidents are deleted, so paging is keyed by
// GlobalID instead: GlobalIDs are unique and random, and ordering by them
// gives a stable cursor for incremental crawls.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/apex/log"
)

// ZeroGlobalID sorts before every real GlobalID; use it to start a crawl
// from the beginning.
const ZeroGlobalID = "{00000000-0000-0000-0000-000000000000}"

// Geometry is a feature's point geometry in the requested spatial
// reference.
type Geometry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Feature is one layer feature.
type Feature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *Geometry              `json:"geometry"`
}

// GlobalID returns the feature's GlobalID attribute, empty if absent.
func (f Feature) GlobalID() string {
	gid, _ := f.Attributes["GlobalID"].(string)
	return gid
}

type queryResponse struct {
	Features []Feature `json:"features"`
}

// Client queries one layer.
type Client struct {
	// QueryURL is the layer query endpoint, e.g.
	// "http://maps.stlouisco.com/arcgis/rest/services/Police/AGS_Crimes/MapServer/0/query".
	QueryURL string

	// OutSR is the output spatial reference WKID. Defaults to 102100
	// (spherical Web Mercator).
	OutSR string

	HTTPClient *http.Client
}

// New returns a client for the given layer query endpoint.
func New(queryURL string) *Client {
	return &Client{
		QueryURL:   queryURL,
		OutSR:      "102100",
		HTTPClient: http.DefaultClient,
	}
}

// FeaturesSince pages through the layer's features with GlobalID greater
// than afterGID, in GlobalID order, invoking fn for each. Paging continues
// until the server returns an empty result set.
func (c *Client) FeaturesSince(ctx context.Context, afterGID string, fn func(Feature) error) error {
	if afterGID == "" {
		afterGID = ZeroGlobalID
	}

	for {
		log.Debugf("Fetching GlobalIDs > %s", afterGID)

		features, err := c.fetchPage(ctx, afterGID)
		if err != nil {
			return err
		}
		log.Debugf("Got %d features", len(features))

		// No records with a larger GlobalID; we're done.
		if len(features) == 0 {
			return nil
		}

		for _, f := range features {
			afterGID = f.GlobalID()
			if err := fn(f); err != nil {
				return err
			}
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, afterGID string) ([]Feature, error) {
	params := url.Values{}
	params.Set("f", "json")
	params.Set("returnGeometry", "true")
	params.Set("outFields", "*")
	params.Set("outSR", c.OutSR)
	params.Set("orderByFields", "GlobalID")
	params.Set("where", fmt.Sprintf("GlobalID>'%s'", afterGID))

	u := c.QueryURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", u, err)
	}
	return qr.Features, nil
}
