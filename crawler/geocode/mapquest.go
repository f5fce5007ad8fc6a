package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/apex/log"
	geojson "github.com/paulmach/go.geojson"
	"golang.org/x/time/rate"
)

// granularities orders MapQuest quality codes from most to least specific.
// See http://open.mapquestapi.com/geocoding/geocodequality.html.
const granularities = "PLIBAZ"

const defaultBatchSize = 10

// MapQuest geocodes through the MapQuest open batch geocoding API.
type MapQuest struct {
	// BaseURL is the batch endpoint; New sets the production one.
	BaseURL string
	Key     string

	// Shape, when set, discards results outside the region and passes its
	// bounding box to the API as a hint.
	Shape Shape

	// BatchSize is the number of locations per API call.
	BatchSize int

	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// New returns a MapQuest geocoder using the given API key, making at most
// qps requests per second.
func New(key string, shape Shape, qps float64) *MapQuest {
	return &MapQuest{
		BaseURL:    "http://open.mapquestapi.com/geocoding/v1/batch",
		Key:        key,
		Shape:      shape,
		BatchSize:  defaultBatchSize,
		HTTPClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(qps), 1),
	}
}

type mapquestResponse struct {
	Info struct {
		StatusCode int `json:"statuscode"`
	} `json:"info"`
	Results []struct {
		ProvidedLocation struct {
			Location string `json:"location"`
		} `json:"providedLocation"`
		Locations []mapquestLocation `json:"locations"`
	} `json:"results"`
}

type mapquestLocation struct {
	GeocodeQualityCode string `json:"geocodeQualityCode"`
	DisplayLatLng      struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"displayLatLng"`
}

// Geocode resolves the given locations, batching API calls.
func (m *MapQuest) Geocode(ctx context.Context, locations []string) ([]*geojson.Geometry, error) {
	batchSize := m.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	results := make([]*geojson.Geometry, 0, len(locations))
	for start := 0; start < len(locations); start += batchSize {
		end := start + batchSize
		if end > len(locations) {
			end = len(locations)
		}

		batch, err := m.geocodeBatch(ctx, locations[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (m *MapQuest) geocodeBatch(ctx context.Context, locations []string) ([]*geojson.Geometry, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	params := url.Values{}
	params.Set("key", m.Key)
	for _, l := range locations {
		params.Add("location", l)
	}
	if m.Shape != nil {
		minLon, minLat, maxLon, maxLat := m.Shape.Bounds()
		params.Set("boundingBox",
			fmt.Sprintf("%g,%g,%g,%g", maxLat, minLon, minLat, maxLon))
	}

	u := m.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding batch: %w", err)
	}
	defer resp.Body.Close()

	var mr mapquestResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decoding geocoder response: %w", err)
	}

	nothing := make([]*geojson.Geometry, len(locations))

	if mr.Info.StatusCode != 0 {
		log.Warnf("Geocoding failed with status %d; yielding empty results",
			mr.Info.StatusCode)
		return nothing, nil
	}
	if len(mr.Results) != len(locations) {
		return nil, fmt.Errorf("got %d results for %d locations",
			len(mr.Results), len(locations))
	}

	out := make([]*geojson.Geometry, len(locations))
	for i, result := range mr.Results {
		// The API is not documented to preserve request order, but does in
		// practice; fail loudly should that ever change.
		if result.ProvidedLocation.Location != locations[i] {
			return nil, fmt.Errorf("result %d is for %q, expected %q",
				i, result.ProvidedLocation.Location, locations[i])
		}

		locs := result.Locations
		if m.Shape != nil {
			kept := locs[:0:len(locs)]
			for _, l := range locs {
				if m.Shape.Contains(l.DisplayLatLng.Lng, l.DisplayLatLng.Lat) {
					kept = append(kept, l)
				}
			}
			locs = kept
		}
		if len(locs) == 0 {
			continue
		}

		// Pick the most specific remaining candidate.
		sort.SliceStable(locs, func(a, b int) bool {
			return qualityRank(locs[a].GeocodeQualityCode) < qualityRank(locs[b].GeocodeQualityCode)
		})
		best := locs[0]
		out[i] = geojson.NewPointGeometry(
			[]float64{best.DisplayLatLng.Lng, best.DisplayLatLng.Lat})
	}
	return out, nil
}

// qualityRank orders quality codes from most specific (lowest rank) to
// least. Codes look like "P1AAA": a granularity letter followed by a
// confidence digit.
func qualityRank(code string) int {
	if code == "" {
		return len(granularities) * 10
	}
	g := strings.IndexByte(granularities, code[0])
	if g < 0 {
		g = len(granularities)
	}
	sub := 9
	if len(code) > 1 {
		if d, err := strconv.Atoi(code[1:2]); err == nil {
			sub = d
		}
	}
	return g*10 + sub
}
