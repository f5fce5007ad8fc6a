package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
)

func gid(i int) string {
	return fmt.Sprintf("{A%07d-0000-0000-0000-000000000000}", i)
}

func newLayer(t *testing.T, total, pageSize int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("f") != "json" || q.Get("orderByFields") != "GlobalID" {
			t.Errorf("Unexpected query params: %v", q)
		}
		where := q.Get("where")
		after := strings.TrimSuffix(strings.TrimPrefix(where, "GlobalID>'"), "'")

		var gids []string
		for i := 0; i < total; i++ {
			if g := gid(i); g > after {
				gids = append(gids, g)
			}
		}
		sort.Strings(gids)
		if len(gids) > pageSize {
			gids = gids[:pageSize]
		}

		features := make([]Feature, len(gids))
		for i, g := range gids {
			features[i] = Feature{
				Attributes: map[string]interface{}{"GlobalID": g, "Offense": "LARCENY"},
				Geometry:   &Geometry{X: -10040000, Y: 4660000},
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"features": features})
	}))
}

func TestFeaturesSincePagesInGlobalIDOrder(t *testing.T) {
	srv := newLayer(t, 23, 5)
	defer srv.Close()

	c := New(srv.URL + "/query")
	c.HTTPClient = srv.Client()

	var seen []string
	err := c.FeaturesSince(context.Background(), "", func(f Feature) error {
		seen = append(seen, f.GlobalID())
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(seen) != 23 {
		t.Fatalf("Got %d features, want 23", len(seen))
	}
	if !sort.StringsAreSorted(seen) {
		t.Error("Features not in GlobalID order")
	}
	if seen[0] != gid(0) || seen[22] != gid(22) {
		t.Errorf("Unexpected bounds: %s .. %s", seen[0], seen[22])
	}
}

func TestFeaturesSinceResumesAfterCursor(t *testing.T) {
	srv := newLayer(t, 10, 100)
	defer srv.Close()

	c := New(srv.URL + "/query")
	c.HTTPClient = srv.Client()

	count := 0
	err := c.FeaturesSince(context.Background(), gid(6), func(f Feature) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected 3 features after %s, got %d", gid(6), count)
	}
}

func TestFeaturesSinceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL + "/query")
	c.HTTPClient = srv.Client()
	if err := c.FeaturesSince(context.Background(), "", func(Feature) error { return nil }); err == nil {
		t.Error("Expected error for non-200 status")
	}
}
