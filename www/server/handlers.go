package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"crimedb/api"
)

var (
	regionNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	monthFileRE  = regexp.MustCompile(`^(\d{4}-\d{2}|UNKNOWN)\.json$`)
)

type handlers struct {
	dataDir string
}

// ListRegions collects every published region's meta.json.
func (h *handlers) ListRegions(c *gin.Context) {
	entries, err := os.ReadDir(h.dataDir)
	if err != nil {
		log.Errorf("Failed to list %s: %v", h.dataDir, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list regions"})
		return
	}

	list := api.RegionList{Regions: []api.Meta{}}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.dataDir, e.Name(), api.MetaFileName))
		if err != nil {
			log.Warnf("Region dir %s has no readable meta.json: %v", e.Name(), err)
			continue
		}
		var meta api.Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			log.Warnf("Region dir %s has malformed meta.json: %v", e.Name(), err)
			continue
		}
		list.Regions = append(list.Regions, meta)
	}

	sort.Slice(list.Regions, func(i, j int) bool {
		return list.Regions[i].Name < list.Regions[j].Name
	})
	c.JSON(http.StatusOK, list)
}

func (h *handlers) GetMeta(c *gin.Context) {
	region := c.Param("region")
	if !regionNameRE.MatchString(region) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad region name"})
		return
	}
	h.serveFile(c, filepath.Join(h.dataDir, region, api.MetaFileName))
}

func (h *handlers) GetMonth(c *gin.Context) {
	region, month := c.Param("region"), c.Param("month")
	if !regionNameRE.MatchString(region) || !monthFileRE.MatchString(month) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad region or month name"})
		return
	}
	h.serveFile(c, filepath.Join(h.dataDir, region, month))
}

func (h *handlers) GetTile(c *gin.Context) {
	region := c.Param("region")
	if !regionNameRE.MatchString(region) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad region name"})
		return
	}

	coords := make([]int, 3)
	for i, name := range []string{"z", "x", "y"} {
		n, err := strconv.Atoi(c.Param(name))
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad tile coordinate"})
			return
		}
		coords[i] = n
	}

	h.serveFile(c, filepath.Join(h.dataDir, region, "grid",
		strconv.Itoa(coords[0]), strconv.Itoa(coords[1]),
		strconv.Itoa(coords[2])+".json"))
}

func (h *handlers) serveFile(c *gin.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Header("Content-Type", "application/json")
	c.File(path)
}
