package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mbd888/compliance-dashboard/internal/audit"
)

// Config holds the configuration for connecting to the dashboard API.
type Config struct {
	APIURL  string        // Base URL, e.g. "http://localhost:8080"
	Timeout time.Duration // per request; 0 means 60s
}

// DashboardClient is a pure HTTP client for the compliance dashboard API.
type DashboardClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewDashboardClient creates a new client for the dashboard API.
func NewDashboardClient(cfg Config) *DashboardClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &DashboardClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// apiError represents an error response from the dashboard.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the dashboard and returns the response body.
func (c *DashboardClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
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

// GetDashboard builds a fresh dashboard snapshot.
func (c *DashboardClient) GetDashboard(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/dashboard", nil, nil)
}

// ListAlerts returns alerts for transactions above threshold. A nil
// threshold uses the server default.
func (c *DashboardClient) ListAlerts(ctx context.Context, threshold *float64) (json.RawMessage, error) {
	var q url.Values
	if threshold != nil {
		q = url.Values{}
		q.Set("threshold", strconv.FormatFloat(*threshold, 'f', -1, 64))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/alerts", q, nil)
}

// GetGraph returns the wallet relationship graph.
func (c *DashboardClient) GetGraph(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/graph", nil, nil)
}

// Classify evaluates a single score against the compliance rules.
func (c *DashboardClient) Classify(ctx context.Context, score float64) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/classify", nil, map[string]float64{"score": score})
}

// AnalysisStatus returns the analysis runner state.
func (c *DashboardClient) AnalysisStatus(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/analysis", nil, nil)
}

// RunLocalAnalysis triggers a local analysis cycle.
func (c *DashboardClient) RunLocalAnalysis(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/analysis/local", nil, nil)
}

// GenerateTemplate asks for contract code matching the form.
func (c *DashboardClient) GenerateTemplate(ctx context.Context, form audit.FormFields) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/contracts/template", nil, map[string]any{"form": form})
}

// AuditContract submits contract code for audit.
func (c *DashboardClient) AuditContract(ctx context.Context, form audit.FormFields, contractCode string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/analysis/audit", nil, map[string]any{
		"form":         form,
		"contractCode": contractCode,
	})
}
