package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"qrcheckin/internal/history"
)

// HTTPRecorder submits events to a real backend while preserving the
// Recorder contract: one attempt, descriptive error on failure.
type HTTPRecorder struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTP creates a recorder against baseURL.
func NewHTTP(baseURL string) *HTTPRecorder {
	return &HTTPRecorder{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit posts the event and decodes the acknowledgement.
func (r *HTTPRecorder) Submit(ctx context.Context, event history.Event) (Receipt, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/attendance", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("submission rejected %s: %s", resp.Status, string(raw))
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt: %w", err)
	}
	return receipt, nil
}
