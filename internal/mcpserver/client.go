package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for connecting to the podsight platform.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	APIKey string // API key, e.g. "pk_..."
}

// PodsightClient is a pure HTTP client for the podsight platform API.
type PodsightClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewPodsightClient creates a new client for the podsight platform.
func NewPodsightClient(cfg Config) *PodsightClient {
	return &PodsightClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// quotaDenial is the 403 payload when a plan cap would be exceeded.
type quotaDenial struct {
	Error           string `json:"error"`
	Code            string `json:"code"`
	Limit           int    `json:"limit"`
	Used            int    `json:"used"`
	CycleEnd        string `json:"cycleEnd"`
	UpgradeRequired bool   `json:"upgradeRequired"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *PodsightClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		var denial quotaDenial
		if json.Unmarshal(respBody, &denial) == nil && denial.Code == "plan_limit_reached" {
			return nil, &QuotaError{denial}
		}
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// QuotaError surfaces a plan-limit denial so tools can explain it.
type QuotaError struct {
	Denial quotaDenial
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("plan limit reached: %d of %d used this cycle", e.Denial.Used, e.Denial.Limit)
}

// GetUsage returns the current cycle's usage report.
func (c *PodsightClient) GetUsage(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/usage", nil, nil)
}

// ScheduleContent submits a scheduling request.
func (c *PodsightClient) ScheduleContent(ctx context.Context, req map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/schedule", nil, req)
}

// ListDeliveries lists scheduled deliveries, optionally bounded by time.
func (c *PodsightClient) ListDeliveries(ctx context.Context, from, to string) (json.RawMessage, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/schedule", q, nil)
}

// CancelDelivery cancels a scheduled delivery.
func (c *PodsightClient) CancelDelivery(ctx context.Context, deliveryID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodDelete, "/v1/schedule/"+deliveryID, nil, nil)
}

// ListIntegrations returns provider connections and their capabilities.
func (c *PodsightClient) ListIntegrations(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/integrations", nil, nil)
}
