package regions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"

	"crimedb/crawler/core"
	"crimedb/crawler/geocode"
)

// UnknownMonth buckets crimes whose incident time could not be determined.
const UnknownMonth = "UNKNOWN"

// Region is one covered municipality. Download fetches raw source data
// into the work directory, Process turns it into normalized per-month
// intermediate files, and EachCrime iterates the result.
type Region interface {
	Name() string
	HumanName() string
	HumanURL() string
	Shape() *Shape

	Download(ctx context.Context) error
	Process(ctx context.Context, geocoder geocode.Geocoder) error
	EachCrime(fn func(core.Crime) error) error
}

// Config carries the per-run settings shared by all regions.
type Config struct {
	// WorkDir is the root under which each region keeps its raw and
	// intermediate data, in a subdirectory named after the region.
	WorkDir string

	// ShapeDir holds <name>.geojson boundary files. A missing boundary
	// file is not an error; the region just runs without clipping.
	ShapeDir string
}

// New constructs the named region.
func New(name string, cfg Config) (Region, error) {
	b, err := newBase(name, cfg)
	if err != nil {
		return nil, err
	}

	// All covered regions report incident times in US Central.
	tz, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return nil, err
	}

	switch name {
	case "stl":
		return newSTL(b, tz), nil
	case "stlco":
		return newSTLCounty(b, tz), nil
	case "dallas":
		return newDallas(b, tz), nil
	}
	return nil, fmt.Errorf("unknown region: %s", name)
}

// Names lists the supported region names.
func Names() []string {
	return []string{"dallas", "stl", "stlco"}
}

// base carries the machinery common to all regions: the work directory
// layout and the month-bucketed intermediate files.
type base struct {
	name  string
	dir   string
	shape *Shape
}

func newBase(name string, cfg Config) (base, error) {
	b := base{name: name, dir: filepath.Join(cfg.WorkDir, name)}

	if cfg.ShapeDir != "" {
		path := filepath.Join(cfg.ShapeDir, name+".geojson")
		shape, err := LoadShape(path)
		switch {
		case err == nil:
			b.shape = shape
		case os.IsNotExist(err):
			log.Warnf("region %s: no boundary file at %s, clipping disabled", name, path)
		default:
			return base{}, err
		}
	}

	return b, nil
}

func (b *base) Name() string  { return b.name }
func (b *base) Shape() *Shape { return b.shape }

// rawDir is where Download puts source data, created on demand.
func (b *base) rawDir() (string, error) {
	dir := filepath.Join(b.dir, "raw")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// intermediateDir holds the normalized per-month crime files.
func (b *base) intermediateDir() (string, error) {
	dir := filepath.Join(b.dir, "intermediate")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// clip returns the point if it is inside the region boundary, nil
// otherwise. With no boundary loaded every point passes.
func (b *base) clip(lon, lat float64) *core.Point {
	if b.shape != nil && !b.shape.Contains(lon, lat) {
		log.Debugf("region %s: dropping location (%f, %f) outside boundary", b.name, lon, lat)
		return nil
	}
	return &core.Point{Lon: lon, Lat: lat}
}

// monthKey is the intermediate file bucket for a crime, YYYY-MM or
// UnknownMonth when the incident time is missing.
func monthKey(c core.Crime) string {
	if c.Time.IsZero() {
		return UnknownMonth
	}
	return c.Time.Format("2006-01")
}

// intermediateWriter appends crimes to month-bucketed NDJSON files,
// truncating each bucket the first time it is touched in a run.
type intermediateWriter struct {
	dir   string
	files map[string]*os.File
}

func (b *base) newIntermediateWriter() (*intermediateWriter, error) {
	dir, err := b.intermediateDir()
	if err != nil {
		return nil, err
	}
	return &intermediateWriter{dir: dir, files: map[string]*os.File{}}, nil
}

func (w *intermediateWriter) Write(c core.Crime) error {
	key := monthKey(c)
	f, ok := w.files[key]
	if !ok {
		var err error
		f, err = os.Create(filepath.Join(w.dir, key+".json"))
		if err != nil {
			return err
		}
		w.files[key] = f
	}

	data, err := json.Marshal(&c)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

func (w *intermediateWriter) Close() error {
	var firstErr error
	for _, f := range w.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.files = map[string]*os.File{}
	return firstErr
}

// EachCrime replays every intermediate file in month order.
func (b *base) EachCrime(fn func(core.Crime) error) error {
	dir, err := b.intermediateDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := eachCrimeInFile(filepath.Join(dir, name), fn); err != nil {
			return err
		}
	}
	return nil
}

// stringField pulls a string value out of a decoded JSON object,
// returning "" when absent or differently typed.
func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// floatField pulls a numeric value out of a decoded JSON object. Socrata
// serves numbers as strings while ArcGIS serves them as JSON numbers, so
// both are accepted.
func floatField(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func eachCrimeInFile(path string, fn func(core.Crime) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c core.Crime
		if err := json.Unmarshal(line, &c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return scanner.Err()
}
