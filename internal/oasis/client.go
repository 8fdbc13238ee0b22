package oasis

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jgoulah/lmpscraper/internal/frame"
)

// DefaultChunkDays is the widest span OASIS reliably serves in one request
const DefaultChunkDays = 10

// ErrNoCSV is returned when a SingleZip archive holds no CSV entry
var ErrNoCSV = errors.New("no CSV file found in ZIP")

// StatusError represents a non-2xx answer from OASIS
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("OASIS returned status %d: %s", e.StatusCode, e.Body)
}

// Client retrieves LMP reports from OASIS
type Client struct {
	baseURL   string
	chunkDays int
	dedupe    bool
	http      *http.Client
	out       io.Writer
}

// NewClient creates a new OASIS client. An empty baseURL selects
// DefaultBaseURL and a non-positive chunkDays selects DefaultChunkDays.
func NewClient(baseURL string, chunkDays int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if chunkDays <= 0 {
		chunkDays = DefaultChunkDays
	}
	return &Client{
		baseURL:   baseURL,
		chunkDays: chunkDays,
		http:      &http.Client{},
		out:       os.Stdout,
	}
}

// SetTimeout bounds each request. Zero means no timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.http.Timeout = d
}

// SetOutput redirects progress messages
func (c *Client) SetOutput(w io.Writer) {
	c.out = w
}

// SetDedupe enables dropping rows repeated across chunk boundaries
func (c *Client) SetDedupe(dedupe bool) {
	c.dedupe = dedupe
}

// URL builds the query for one request window
func (c *Client) URL(market Market, node string, start, end time.Time) string {
	return BuildURL(c.baseURL, market, node, start, end)
}

// Fetch downloads one SingleZip report and parses its CSV entry
func (c *Client) Fetch(ctx context.Context, reqURL string) (*frame.Table, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: preview}
	}

	return readZippedCSV(body)
}

// readZippedCSV parses the first archive entry whose name mentions .csv
func readZippedCSV(data []byte) (*frame.Table, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening ZIP: %w", err)
	}

	for _, f := range r.File {
		if !strings.Contains(f.Name, ".csv") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening file in ZIP: %w", err)
		}
		defer rc.Close()

		tbl, err := frame.ReadCSV(rc)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		return tbl, nil
	}

	return nil, ErrNoCSV
}

// sizeOf is used for progress output only
func sizeOf(tbl *frame.Table) string {
	return humanize.Comma(int64(tbl.Len())) + " rows"
}
