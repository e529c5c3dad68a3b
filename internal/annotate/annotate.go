// Package annotate resolves coordinates to a human-readable venue name.
// The lookup is a best-effort enhancement: it never fails, it only
// declines to answer.
package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"qrcheckin/internal/geo"
)

// NotAvailable is the sentinel returned when no name could be resolved.
// Callers treat it as "no update".
const NotAvailable = "N/A"

// Annotator resolves a point to a venue name, or NotAvailable.
type Annotator interface {
	Annotate(ctx context.Context, point geo.Point) string
}

// Client calls a venue-lookup service over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every lookup answers NotAvailable
// without touching the network.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Annotate looks up the venue name for point. Any internal failure is
// logged and swallowed; the result is then NotAvailable.
func (c *Client) Annotate(ctx context.Context, point geo.Point) string {
	if c.Skip || c.BaseURL == "" {
		return NotAvailable
	}

	body, _ := json.Marshal(point)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/venues/lookup", bytes.NewReader(body))
	if err != nil {
		return NotAvailable
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.Printf("venue lookup failed: %v", err)
		return NotAvailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("venue lookup error: %s", resp.Status)
		return NotAvailable
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Printf("venue lookup decode failed: %v", err)
		return NotAvailable
	}
	name := strings.TrimSpace(out.Name)
	if name == "" {
		return NotAvailable
	}
	return name
}
