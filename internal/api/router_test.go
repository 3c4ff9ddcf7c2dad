package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trust-ledger/internal/locking"
	"github.com/example/trust-ledger/internal/security"
	"github.com/example/trust-ledger/internal/trust"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := trust.NewService(trust.NewMemoryStore(), locking.NewLocal(), trust.DefaultConfig(), logger)
	router, err := NewRouter(Dependencies{Logger: logger, Ledger: svc})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorIDHeader, "clerk-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded))
	}
	return resp, decoded
}

func field(t *testing.T, doc map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(doc[key], &s))
	return s
}

func openActiveAccount(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, doc := doJSON(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"tenant_id":       "tenant-1",
		"practitioner_id": "prac-1",
		"bank":            map[string]any{"bank_name": "First Fiduciary", "account_masked": "****4821"},
		"interest_policy": map[string]any{"annual_rate": "0.025"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := field(t, doc, "id")

	resp, _ = doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return id
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenAccountValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, doc := doJSON(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"tenant_id": "tenant-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", field(t, doc, "error"))
}

func TestTransactionRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	id := openActiveAccount(t, srv)

	resp, doc := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/transactions", map[string]any{
		"type":             "deposit",
		"amount":           "1500.00",
		"client_id":        "client-a",
		"matter_reference": "matter-1",
		"description":      "settlement funds",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1500.00", field(t, doc, "account_balance"))
	txID := field(t, doc, "transaction_id")

	resp, acct := doJSON(t, srv, http.MethodGet, "/v1/accounts/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1500.00", field(t, acct, "current_balance"))

	resp, _ = doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/v1/accounts/%s/transactions/%s/reverse", id, txID),
		map[string]any{"reason": "posted twice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, acct = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.00", field(t, acct, "current_balance"))
}

func TestTransactionErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	id := openActiveAccount(t, srv)

	// Schema rejects the reversal type at the boundary.
	resp, _ := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/transactions", map[string]any{
		"type": "reversal", "amount": "10", "client_id": "c", "matter_reference": "m",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Insufficient funds maps to 409.
	resp, doc := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/transactions", map[string]any{
		"type": "withdrawal", "amount": "50.00", "client_id": "client-a", "matter_reference": "matter-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(trust.KindInsufficientFunds), field(t, doc, "error"))

	// Unknown account maps to 404.
	resp, doc = doJSON(t, srv, http.MethodPost, "/v1/accounts/nope/transactions", map[string]any{
		"type": "deposit", "amount": "50.00", "client_id": "client-a", "matter_reference": "matter-1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(trust.KindNotFound), field(t, doc, "error"))
}

func TestReconcileEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := openActiveAccount(t, srv)

	resp, _ := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/transactions", map[string]any{
		"type": "deposit", "amount": "5000.00", "client_id": "client-a", "matter_reference": "matter-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, doc := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/reconciliations", map[string]any{
		"bank_balance": "5000.00",
		"statement":    map[string]any{"date": "2026-08-01T00:00:00Z", "reference": "STMT-2026-08"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, string(trust.ReconCompleted), field(t, doc, "status"))

	// Missing statement fails schema validation.
	resp, _ = doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/reconciliations", map[string]any{
		"bank_balance": "5000.00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChainVerifyAndAuditReport(t *testing.T) {
	srv := newTestServer(t)
	id := openActiveAccount(t, srv)

	resp, _ := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/transactions", map[string]any{
		"type": "deposit", "amount": "100.00", "client_id": "client-a", "matter_reference": "matter-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, doc := doJSON(t, srv, http.MethodGet, "/v1/accounts/"+id+"/chain/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var valid bool
	require.NoError(t, json.Unmarshal(doc["valid"], &valid))
	assert.True(t, valid)

	resp, _ = doJSON(t, srv, http.MethodGet,
		"/v1/accounts/"+id+"/audit-report?start=2026-01-01T00:00:00Z&end=2026-12-31T00:00:00Z", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+id+"/audit-report?start=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCloseAccountEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := openActiveAccount(t, srv)

	resp, _ := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/transactions", map[string]any{
		"type": "deposit", "amount": "100.00", "client_id": "client-a", "matter_reference": "matter-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, doc := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/close",
		map[string]any{"reason": "practice wound down"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(trust.KindAccountHasBalance), field(t, doc, "error"))

	resp, _ = doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/transactions", map[string]any{
		"type": "withdrawal", "amount": "100.00", "client_id": "client-a", "matter_reference": "matter-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, doc = doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/close",
		map[string]any{"reason": "practice wound down"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.00", field(t, doc, "final_balance"))
}

func TestCorrelationIDPropagation(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/accounts/missing", nil)
	require.NoError(t, err)
	req.Header.Set(security.CorrelationIDHeader, "corr-123")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "corr-123", resp.Header.Get(security.CorrelationIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	resp, doc := doJSON(t, srv, http.MethodGet, "/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", field(t, doc, "error"))
}
