package geo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Client queries a positioning agent over HTTP. The agent is expected to
// answer GET /position with {"latitude": ..., "longitude": ...}. A fresh,
// high-accuracy fix is requested every time; cached fixes are refused.
type Client struct {
	BaseURL string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewClient creates a locator with the given bounded wait.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Timeout: timeout,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Current makes a single positioning attempt. No retry.
func (c *Client) Current(ctx context.Context) (Point, error) {
	if c.BaseURL == "" {
		return Point{}, ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/position?highAccuracy=1&maximumAge=0", nil)
	if err != nil {
		return Point{}, ErrUnknown
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Point{}, ErrTimeout
		}
		return Point{}, ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return Point{}, ErrPermissionDenied
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusServiceUnavailable:
		return Point{}, ErrUnavailable
	case resp.StatusCode >= 300:
		return Point{}, ErrUnknown
	}

	var pt Point
	if err := json.NewDecoder(resp.Body).Decode(&pt); err != nil {
		return Point{}, ErrUnknown
	}
	return pt, nil
}
