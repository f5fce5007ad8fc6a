package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"crimedb/api"
)

func testRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	h := &handlers{dataDir: dir}

	router := gin.New()
	router.GET(api.RegionsEndpoint, h.ListRegions)
	router.GET(api.MetaEndpoint, h.GetMeta)
	router.GET(api.MonthEndpoint, h.GetMonth)
	router.GET(api.TileEndpoint, h.GetTile)
	return router, dir
}

func writeRegionFile(t *testing.T, dir, region, name, content string) {
	t.Helper()
	path := filepath.Join(dir, region, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestListRegions(t *testing.T) {
	router, dir := testRouter(t)
	writeRegionFile(t, dir, "stlco", api.MetaFileName,
		`{"name":"stlco","human_name":"St. Louis County, MO","human_url":"u","update_time":"t"}`)
	writeRegionFile(t, dir, "dallas", api.MetaFileName,
		`{"name":"dallas","human_name":"Dallas, TX","human_url":"u","update_time":"t"}`)
	// A directory without meta.json is skipped, not an error.
	if err := os.MkdirAll(filepath.Join(dir, "broken"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	w := get(router, "/regions")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	var list api.RegionList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(list.Regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(list.Regions))
	}
	if list.Regions[0].Name != "dallas" || list.Regions[1].Name != "stlco" {
		t.Errorf("regions out of order: %s, %s", list.Regions[0].Name, list.Regions[1].Name)
	}
}

func TestGetMeta(t *testing.T) {
	router, dir := testRouter(t)
	writeRegionFile(t, dir, "stl", api.MetaFileName, `{"name":"stl"}`)

	if w := get(router, "/regions/stl/meta.json"); w.Code != http.StatusOK {
		t.Errorf("existing meta: status %d", w.Code)
	}
	if w := get(router, "/regions/nowhere/meta.json"); w.Code != http.StatusNotFound {
		t.Errorf("missing meta: status %d", w.Code)
	}
}

func TestGetMonth(t *testing.T) {
	router, dir := testRouter(t)
	writeRegionFile(t, dir, "stl", "2014-03.json", `{"update_time":"t","crimes":[]}`)
	writeRegionFile(t, dir, "stl", "UNKNOWN.json", `{"update_time":"t","crimes":[]}`)

	if w := get(router, "/regions/stl/2014-03.json"); w.Code != http.StatusOK {
		t.Errorf("existing month: status %d", w.Code)
	}
	if w := get(router, "/regions/stl/UNKNOWN.json"); w.Code != http.StatusOK {
		t.Errorf("unknown bucket: status %d", w.Code)
	}
	if w := get(router, "/regions/stl/2014-04.json"); w.Code != http.StatusNotFound {
		t.Errorf("missing month: status %d", w.Code)
	}
	if w := get(router, "/regions/stl/secrets.txt"); w.Code != http.StatusBadRequest {
		t.Errorf("bad month name: status %d", w.Code)
	}
}

func TestGetTile(t *testing.T) {
	router, dir := testRouter(t)
	writeRegionFile(t, dir, "stl", filepath.Join("grid", "8", "62", "96.json"),
		`{"type":"FeatureCollection","features":[]}`)

	if w := get(router, "/regions/stl/grid/8/62/96"); w.Code != http.StatusOK {
		t.Errorf("existing tile: status %d", w.Code)
	}
	if w := get(router, "/regions/stl/grid/8/62/97"); w.Code != http.StatusNotFound {
		t.Errorf("missing tile: status %d", w.Code)
	}
	if w := get(router, "/regions/stl/grid/8/-1/96"); w.Code != http.StatusBadRequest {
		t.Errorf("negative coordinate: status %d", w.Code)
	}
	if w := get(router, "/regions/stl/grid/8/zz/96"); w.Code != http.StatusBadRequest {
		t.Errorf("garbage coordinate: status %d", w.Code)
	}
}
