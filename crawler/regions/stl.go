package regions

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/net/html"

	"crimedb/crawler/core"
	"crimedb/crawler/geocode"
	"crimedb/crawler/proj"
)

// St. Louis City. SLMPD publishes monthly CSV files behind an ASP.NET
// GridView; fetching one means replaying the page's postback form with
// the file link's event target. Per the department FAQ, (XCoord, YCoord)
// is NAD83 state plane (Missouri East, US feet).
const stlBaseURL = "http://www.slmpd.org/CrimeReport.aspx"

const stlTimeLayout = "01/02/2006 15:04"

var (
	stlFileAnchorRE = regexp.MustCompile(`^GridView1.*downloadD`)
	postBackRE      = regexp.MustCompile(`^javascript:__doPostBack\('([^']+)'`)
)

type stlRegion struct {
	base

	BaseURL    string
	HTTPClient *http.Client

	tz *time.Location
}

func newSTL(b base, tz *time.Location) *stlRegion {
	return &stlRegion{
		base:       b,
		BaseURL:    stlBaseURL,
		HTTPClient: http.DefaultClient,
		tz:         tz,
	}
}

func (r *stlRegion) HumanName() string { return "St. Louis City, MO" }
func (r *stlRegion) HumanURL() string  { return "http://www.slmpd.org/" }

// Download walks the report TOC pages in reverse chronological order and
// fetches any CSV files not already cached.
func (r *stlRegion) Download(ctx context.Context) error {
	rawDir, err := r.rawDir()
	if err != nil {
		return err
	}

	body, err := r.fetchPage(ctx, nil)
	if err != nil {
		return err
	}

	for pageNum := 2; ; pageNum++ {
		form, err := parsePostBackForm(bytes.NewReader(body))
		if err != nil {
			return err
		}

		for _, a := range form.anchors {
			if !stlFileAnchorRE.MatchString(a.id) {
				continue
			}
			m := postBackRE.FindStringSubmatch(a.href)
			if m == nil {
				continue
			}

			path := filepath.Join(rawDir, a.text)
			if _, err := os.Stat(path); err == nil {
				log.Debugf("region stl: found %s; skipping", a.text)
				continue
			}

			log.Infof("region stl: downloading %s", a.text)
			data, err := r.fetchPage(ctx, form.postBackValues(m[1], ""))
			if err != nil {
				return fmt.Errorf("downloading %s: %w", a.text, err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
		}

		pageArg := fmt.Sprintf("Page$%d", pageNum)
		nextHref := fmt.Sprintf("javascript:__doPostBack('GridView1','%s')", pageArg)
		if !form.hasAnchorHref(nextHref) {
			return nil
		}

		body, err = r.fetchPage(ctx, form.postBackValues("GridView1", pageArg))
		if err != nil {
			return err
		}
	}
}

// fetchPage GETs the TOC when values is nil, otherwise POSTs the postback
// form, returning the response body.
func (r *stlRegion) fetchPage(ctx context.Context, values url.Values) ([]byte, error) {
	var req *http.Request
	var err error
	if values == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL, nil)
	} else {
		req, err = http.NewRequestWithContext(
			ctx, http.MethodPost, r.BaseURL,
			strings.NewReader(values.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", r.BaseURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Process parses every cached CSV file into per-month intermediate files,
// geocoding incidents that come through with zeroed coordinates.
func (r *stlRegion) Process(ctx context.Context, geocoder geocode.Geocoder) error {
	rawDir, err := r.rawDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	w, err := r.newIntermediateWriter()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, name := range names {
		if err := r.processFile(ctx, filepath.Join(rawDir, name), geocoder, w); err != nil {
			return fmt.Errorf("processing %s: %w", name, err)
		}
	}
	return w.Close()
}

func (r *stlRegion) processFile(ctx context.Context, path string, geocoder geocode.Geocoder, w *intermediateWriter) error {
	log.Infof("region stl: processing %s", filepath.Base(path))

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	cols, err := cr.Read()
	if err != nil {
		return err
	}
	// Some months spell the occurrence column differently.
	for i, col := range cols {
		if col == "DateOccured" {
			cols[i] = "DateOccur"
		}
	}

	var needGeocoding []map[string]string

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		rec := map[string]string{}
		for i, col := range cols {
			if i < len(row) {
				rec[col] = row[i]
			}
		}

		x, errX := strconv.ParseFloat(rec["XCoord"], 64)
		y, errY := strconv.ParseFloat(rec["YCoord"], 64)
		if errX != nil || errY != nil {
			log.Warnf("region stl: unparseable coordinates (%q, %q), skipping row",
				rec["XCoord"], rec["YCoord"])
			continue
		}

		if x == 0 && y == 0 {
			if strings.TrimSpace(rec["ILEADSAddress"]) != "" &&
				strings.TrimSpace(rec["ILEADSStreet"]) != "" {
				needGeocoding = append(needGeocoding, rec)
				continue
			}
			if err := w.Write(r.recordToCrime(rec, nil)); err != nil {
				return err
			}
			continue
		}

		lon, lat := proj.MissouriEast.Inverse(x, y)
		if err := w.Write(r.recordToCrime(rec, r.clip(lon, lat))); err != nil {
			return err
		}
	}

	if len(needGeocoding) == 0 {
		return nil
	}

	addrs := make([]string, len(needGeocoding))
	for i, rec := range needGeocoding {
		addrs[i] = stlAddress(rec)
	}
	geoms, err := geocoder.Geocode(ctx, addrs)
	if err != nil {
		return err
	}

	for i, rec := range needGeocoding {
		var loc *core.Point
		if g := geoms[i]; g != nil {
			log.Debugf("region stl: resolved %q to (%f, %f)", addrs[i], g.Point[0], g.Point[1])
			loc = &core.Point{Lon: g.Point[0], Lat: g.Point[1]}
		} else {
			log.Debugf("region stl: failed to resolve %q", addrs[i])
		}
		if err := w.Write(r.recordToCrime(rec, loc)); err != nil {
			return err
		}
	}
	return nil
}

func (r *stlRegion) recordToCrime(rec map[string]string, loc *core.Point) core.Crime {
	t, err := time.ParseInLocation(stlTimeLayout, rec["DateOccur"], r.tz)
	if err != nil {
		log.Warnf("region stl: unparseable occurrence time %q", rec["DateOccur"])
		t = time.Time{}
	}
	return core.Crime{Description: rec["Description"], Time: t, Location: loc}
}

func stlAddress(rec map[string]string) string {
	return fmt.Sprintf("%s %s, Saint Louis, Missouri",
		rec["ILEADSAddress"], rec["ILEADSStreet"])
}

// postBackForm is the hidden-field state of an ASP.NET page plus its
// anchors, enough to replay a __doPostBack.
type postBackForm struct {
	fields  url.Values
	anchors []pageAnchor
}

type pageAnchor struct {
	id   string
	href string
	text string
}

func parsePostBackForm(r io.Reader) (*postBackForm, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	form := &postBackForm{fields: url.Values{}}
	form.fields.Set("__EVENTTARGET", "")
	form.fields.Set("__EVENTARGUMENT", "")

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "input":
				if nodeAttr(n, "type") == "hidden" && nodeAttr(n, "name") != "" {
					form.fields.Set(nodeAttr(n, "name"), nodeAttr(n, "value"))
				}
			case "a":
				form.anchors = append(form.anchors, pageAnchor{
					id:   nodeAttr(n, "id"),
					href: nodeAttr(n, "href"),
					text: nodeText(n),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return form, nil
}

func (f *postBackForm) postBackValues(target, argument string) url.Values {
	values := url.Values{}
	for k, v := range f.fields {
		values[k] = v
	}
	values.Set("__EVENTTARGET", target)
	values.Set("__EVENTARGUMENT", argument)
	return values
}

func (f *postBackForm) hasAnchorHref(href string) bool {
	for _, a := range f.anchors {
		if a.href == href {
			return true
		}
	}
	return false
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
