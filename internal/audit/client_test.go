package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/compliance-dashboard/internal/circuitbreaker"
	"github.com/mbd888/compliance-dashboard/internal/risk"
)

func testConfig() ContractConfig {
	return ContractConfig{
		TransactionType: "securities_settlement",
		AssetType:       "global_custody_services",
		Value:           1000,
		SettlementDate:  "2024-08-01",
		CounterpartyID:  "CP-9",
		Jurisdiction:    "Singapore",
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, BreakerThreshold: 2, BreakerCooldown: time.Minute}, nil)
}

func TestClient_GenerateTemplate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate-template", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got ContractConfig
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Singapore", got.Jurisdiction)

		_ = json.NewEncoder(w).Encode(map[string]string{"contractCode": "contract Custody {}"})
	})

	code, err := c.GenerateTemplate(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "contract Custody {}", code)
}

func TestClient_AuditContract(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/audit-contract", r.URL.Path)

		var got AuditRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "contract Custody {}", got.ContractCode)
		assert.Equal(t, "global_custody_services", got.Config.AssetType)

		_, _ = w.Write([]byte(`{"summary":{"overallHealth":75,"riskLevel":"Medium"}}`))
	})

	a, err := c.AuditContract(context.Background(), "contract Custody {}", testConfig())
	require.NoError(t, err)
	assert.Equal(t, 75.0, a.RiskScore)
	assert.Equal(t, risk.StatusHighRisk, a.Status)
	assert.Equal(t, "Medium", a.StatusLabel)
}

func TestClient_ServerErrorIsServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"model backend unavailable"}`))
	})

	_, err := c.AuditContract(context.Background(), "code", testConfig())
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, OpAuditContract, se.Op)
	assert.Contains(t, se.Error(), "model backend unavailable")
}

func TestClient_NoRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GenerateTemplate(context.Background(), testConfig())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContractViolation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summary":{}}`))
	})

	_, err := c.AuditContract(context.Background(), "code", testConfig())
	assert.True(t, IsContractViolation(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.GenerateTemplate(context.Background(), testConfig())
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, se.StatusCode)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
}

func TestClient_BreakerOpensPerOperation(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/api/audit-contract" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"contractCode":"ok"}`))
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.AuditContract(ctx, "code", testConfig())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.Breaker().State(OpAuditContract))

	_, err := c.AuditContract(ctx, "code", testConfig())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())

	code, err := c.GenerateTemplate(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "ok", code)
}

func TestClient_BreakerCountsUnusableBodies(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"summary":{}}`))
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.AuditContract(ctx, "code", testConfig())
		require.True(t, IsContractViolation(err))
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.Breaker().State(OpAuditContract))

	_, err := c.AuditContract(ctx, "code", testConfig())
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_MalformedTemplateCountsAsFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.GenerateTemplate(context.Background(), testConfig())
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, c.Breaker().State(OpGenerateTemplate))

	_, err = c.GenerateTemplate(context.Background(), testConfig())
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, c.Breaker().State(OpGenerateTemplate))
}
