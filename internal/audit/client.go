package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mbd888/compliance-dashboard/internal/circuitbreaker"
	"github.com/mbd888/compliance-dashboard/internal/risk"
	"github.com/mbd888/compliance-dashboard/internal/traces"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// Config holds the settings for reaching the audit service.
type Config struct {
	BaseURL          string        // e.g. "http://localhost:8000"
	Timeout          time.Duration // per call; 0 means 30s
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Client calls the template-generation and audit endpoints. Each call is a
// single POST with no retry; the breaker short-circuits calls after repeated
// failures.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// NewClient creates an audit service client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		breaker:    circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown, circuitbreaker.WithLogger(logger)),
		logger:     logger,
	}
}

// Breaker exposes the client's breaker for health reporting.
func (c *Client) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

// GenerateTemplate asks the service for contract code matching cfg.
func (c *Client) GenerateTemplate(ctx context.Context, cfg ContractConfig) (string, error) {
	body, err := c.post(ctx, OpGenerateTemplate, "/api/generate-template", cfg)
	if err != nil {
		return "", err
	}
	code, err := ParseTemplateResponse(body)
	c.settle(OpGenerateTemplate, err)
	return code, err
}

// AuditContract submits contract code with its configuration and returns the
// resulting assessment.
func (c *Client) AuditContract(ctx context.Context, contractCode string, cfg ContractConfig) (risk.Assessment, error) {
	body, err := c.post(ctx, OpAuditContract, "/api/audit-contract", BuildAuditPayload(contractCode, cfg))
	if err != nil {
		return risk.Assessment{}, err
	}
	a, err := ParseAuditResponse(body)
	c.settle(OpAuditContract, err)
	return a, err
}

// errorBody covers both FastAPI ({"detail": ...}) and {"error","message"} shapes.
type errorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, op, path string, payload any) (respBody []byte, err error) {
	ctx, span := traces.StartSpan(ctx, "audit."+op, traces.Operation(op))
	defer func() { traces.End(span, err) }()

	if !c.breaker.Allow(op) {
		callsTotal.WithLabelValues(op, resultRejected).Inc()
		return nil, &ServiceError{Op: op, Cause: ErrCircuitOpen}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &ServiceError{Op: op, Cause: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	callDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.fail(op, resultTransport)
		return nil, &ServiceError{Op: op, Cause: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(traces.StatusCode(resp.StatusCode))

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.fail(op, resultTransport)
		return nil, &ServiceError{Op: op, StatusCode: resp.StatusCode, Cause: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.fail(op, resultStatus)
		c.logger.Warn("audit service returned error status", "op", op, "status", resp.StatusCode)
		return nil, &ServiceError{Op: op, StatusCode: resp.StatusCode, Cause: errors.New(describe(resp, respBody))}
	}

	return respBody, nil
}

// settle records the outcome of a 2xx call once its body has been parsed, so
// a service answering with unusable bodies still trips the breaker.
func (c *Client) settle(op string, err error) {
	observeResult(op, err)
	if err != nil {
		c.breaker.RecordFailure(op)
		c.logger.Warn("audit service returned unusable body", "op", op, "error", err)
		return
	}
	c.breaker.RecordSuccess(op)
}

func (c *Client) fail(op, result string) {
	c.breaker.RecordFailure(op)
	callsTotal.WithLabelValues(op, result).Inc()
}

func describe(resp *http.Response, body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		switch {
		case eb.Detail != "":
			return eb.Detail
		case eb.Message != "":
			return eb.Message
		case eb.Error != "":
			return eb.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		return text
	}
	return resp.Status
}
