package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type boxShape struct {
	minLon, minLat, maxLon, maxLat float64
}

func (b boxShape) Contains(lon, lat float64) bool {
	return lon >= b.minLon && lon <= b.maxLon && lat >= b.minLat && lat <= b.maxLat
}

func (b boxShape) Bounds() (float64, float64, float64, float64) {
	return b.minLon, b.minLat, b.maxLon, b.maxLat
}

func mqLocation(quality string, lng, lat float64) map[string]interface{} {
	return map[string]interface{}{
		"geocodeQualityCode": quality,
		"displayLatLng":      map[string]float64{"lat": lat, "lng": lng},
	}
}

func TestNullGeocoder(t *testing.T) {
	results, err := Null{}.Geocode(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0] != nil || results[1] != nil {
		t.Errorf("Expected two nil results, got %v", results)
	}
}

func TestMapQuestGeocode(t *testing.T) {
	var gotLocations []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotLocations = q["location"]
		if q.Get("key") != "test-key" {
			t.Errorf("Missing API key, got %q", q.Get("key"))
		}
		if q.Get("boundingBox") == "" {
			t.Error("Expected a boundingBox hint")
		}

		results := []map[string]interface{}{
			{
				// Most specific candidate wins.
				"providedLocation": map[string]string{"location": gotLocations[0]},
				"locations": []map[string]interface{}{
					mqLocation("A5XAX", -90.3, 38.7),
					mqLocation("P1AAA", -90.21, 38.61),
					mqLocation("L1AAA", -90.22, 38.62),
				},
			},
			{
				// Only candidate is outside the shape: unresolved.
				"providedLocation": map[string]string{"location": gotLocations[1]},
				"locations": []map[string]interface{}{
					mqLocation("P1AAA", -100.0, 45.0),
				},
			},
			{
				// No candidates at all.
				"providedLocation": map[string]string{"location": gotLocations[2]},
				"locations":        []map[string]interface{}{},
			},
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"info":    map[string]int{"statuscode": 0},
			"results": results,
		})
	}))
	defer srv.Close()

	m := New("test-key", boxShape{-91, 38, -90, 39}, 100)
	m.BaseURL = srv.URL
	m.HTTPClient = srv.Client()

	addrs := []string{
		"100 Main St, Saint Louis, Missouri",
		"somewhere else entirely",
		"unresolvable",
	}
	results, err := m.Geocode(context.Background(), addrs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	if results[0] == nil || !results[0].IsPoint() {
		t.Fatalf("Expected point for first address, got %v", results[0])
	}
	if results[0].Point[0] != -90.21 || results[0].Point[1] != 38.61 {
		t.Errorf("Expected most specific in-shape candidate, got %v", results[0].Point)
	}
	if results[1] != nil {
		t.Errorf("Out-of-shape result should be nil, got %v", results[1])
	}
	if results[2] != nil {
		t.Errorf("Candidate-less result should be nil, got %v", results[2])
	}
	if len(gotLocations) != 3 {
		t.Errorf("Expected 3 locations in request, got %v", gotLocations)
	}
}

func TestMapQuestBatching(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		locations := r.URL.Query()["location"]
		if len(locations) > 2 {
			t.Errorf("Batch of %d exceeds batch size 2", len(locations))
		}
		results := make([]map[string]interface{}, len(locations))
		for i, l := range locations {
			results[i] = map[string]interface{}{
				"providedLocation": map[string]string{"location": l},
				"locations": []map[string]interface{}{
					mqLocation("P1AAA", -90.2, 38.6),
				},
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"info":    map[string]int{"statuscode": 0},
			"results": results,
		})
	}))
	defer srv.Close()

	m := New("k", nil, 100)
	m.BaseURL = srv.URL
	m.HTTPClient = srv.Client()
	m.BatchSize = 2

	results, err := m.Geocode(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Errorf("Result %d unexpectedly nil", i)
		}
	}
	if calls != 3 {
		t.Errorf("Expected 3 batch calls, got %d", calls)
	}
}

func TestMapQuestErrorStatusYieldsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"info":    map[string]int{"statuscode": 403},
			"results": []interface{}{},
		})
	}))
	defer srv.Close()

	m := New("bad-key", nil, 100)
	m.BaseURL = srv.URL
	m.HTTPClient = srv.Client()

	results, err := m.Geocode(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0] != nil || results[1] != nil {
		t.Errorf("Expected nil results on provider error, got %v", results)
	}
}
