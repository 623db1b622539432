package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minted-protocol/canton-bridge/internal/canary"
	"github.com/minted-protocol/canton-bridge/internal/conversion"
)

func healthyBridge(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/inventory", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(conversion.InventoryResponse{Schema: "cip56", Available: "100", Contracts: 1})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCanaryDryRunTextOutput(t *testing.T) {
	server := healthyBridge(t)

	stdout, _, err := execute(t, "canary", "--base-url", server.URL, "--amount", "10")
	require.NoError(t, err)
	assert.Contains(t, stdout, "preflight.endpoint-reachable")
	assert.Contains(t, stdout, "verdict: pass")
}

func TestCanaryDryRunJSONOutput(t *testing.T) {
	server := healthyBridge(t)

	stdout, _, err := execute(t, "canary", "--base-url", server.URL, "--amount", "10", "--format", "json")
	require.NoError(t, err)

	var report canary.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, canary.VerdictPass, report.Verdict)
	assert.Len(t, report.Assertions, 8)
}

func TestCanaryFailureSetsExitError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, _, err := execute(t, "canary", "--base-url", server.URL, "--amount", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canary verdict: fail")
}
