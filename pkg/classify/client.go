// Package classify calls the external motion classification service
// that decides whether a device's motion snapshot shows a rodent.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request is the payload sent for a single motion snapshot. Image is the
// base64-encoded snapshot the device attached to its motion message.
type Request struct {
	TenantID   string          `json:"tenantId"`
	DeviceID   string          `json:"deviceId"`
	MAC        string          `json:"mac"`
	SensorData json.RawMessage `json:"sensorData"`
	Image      string          `json:"image"`
}

// Result is the classification outcome: a label, a confidence in [0, 1],
// and the model's supporting detail for the persisted classification
// record. Session & Alert Core only feeds the result into alert creation
// when the label is "rodent" with confidence over 0.5 (see
// pkg/session.ApplyClassification); every result is persisted regardless.
type Result struct {
	Label              string          `json:"label"`
	Confidence         float64         `json:"confidence"`
	Predictions        json.RawMessage `json:"predictions,omitempty"`
	ModelVersion       string          `json:"modelVersion,omitempty"`
	InferenceLatencyMs int             `json:"inferenceLatencyMs,omitempty"`
}

// Client calls the blocking classification RPC.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates a classification client. An empty url disables the
// client: Classify returns a zero Result without making a request, so
// callers can wire Client unconditionally and let configuration decide
// whether classification runs.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Enabled reports whether a classification URL was configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

// Classify submits a motion snapshot for classification and blocks for
// up to the client's configured timeout.
func (c *Client) Classify(ctx context.Context, req Request) (Result, error) {
	if !c.Enabled() {
		return Result{}, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling classification request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("building classification request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("calling classification service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("classification service returned HTTP %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decoding classification response: %w", err)
	}
	return result, nil
}
