// Package socrata reads rows from Socrata SODA datasets.
//
// Reference: http://dev.socrata.com/docs/endpoints.html
package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
)

// pageSize is the number of rows requested per page.
const pageSize = 20000

// floatingTimestampFormat is the zone-less Socrata timestamp layout.
// http://dev.socrata.com/docs/datatypes/timestamp.html
const floatingTimestampFormat = "2006-01-02T15:04:05"

// Row is one dataset row as decoded from the JSON resource endpoint.
type Row map[string]interface{}

// Client reads one dataset from a Socrata host.
type Client struct {
	// BaseURL is the scheme and host, e.g. "http://www.dallasopendata.com".
	BaseURL   string
	DatasetID string

	HTTPClient *http.Client
}

// New returns a client for the given dataset.
func New(host, datasetID string) *Client {
	return &Client{
		BaseURL:    "http://" + host,
		DatasetID:  datasetID,
		HTTPClient: http.DefaultClient,
	}
}

// Rows pages through every row of the dataset in order, invoking fn for
// each. System fields are excluded.
func (c *Client) Rows(ctx context.Context, fn func(Row) error) error {
	offset := 0
	for {
		log.Debugf("Fetching rows [%d, %d) from %s", offset, offset+pageSize, c.DatasetID)

		url := fmt.Sprintf(
			"%s/resource/%s.json?$offset=%d&$limit=%d&$$exclude_system_fields=true",
			c.BaseURL, c.DatasetID, offset, pageSize)

		rows, err := c.fetchPage(ctx, url)
		if err != nil {
			return err
		}

		for _, r := range rows {
			if err := fn(r); err != nil {
				return err
			}
		}

		if len(rows) < pageSize {
			return nil
		}
		offset += len(rows)
	}
}

func (c *Client) fetchPage(ctx context.Context, url string) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}
	return rows, nil
}

// ParseFloatingTimestamp interprets a Socrata floating timestamp in the
// given location.
func ParseFloatingTimestamp(ts string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(floatingTimestampFormat, ts, loc)
}
