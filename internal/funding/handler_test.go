package funding

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/minted-protocol/canton-bridge/internal/ledger"
)

func newFundApp(t *testing.T, opts Options) (*fiber.App, *ledger.InMemory) {
	t.Helper()
	svc, l := newFunding(t, opts)
	app := fiber.New()
	app.Post("/fund", NewHandler(svc).Fund)
	return app, l
}

func postFund(t *testing.T, app *fiber.App, body FundRequest) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/fund", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestFundEndpointSuccess(t *testing.T) {
	app, l := newFundApp(t, enabledOpts())
	ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("80"))

	resp := postFund(t, app, FundRequest{Party: alice, Amount: "30"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()
	var body FundResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Party != alice || body.Amount != "30" || body.InventoryRemaining != "50" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestFundEndpointStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		opts   Options
		seed   bool
		body   FundRequest
		status int
		code   ErrorCode
	}{
		{
			name:   "disabled",
			opts:   Options{Enabled: false},
			body:   FundRequest{Party: alice, Amount: "10"},
			status: http.StatusServiceUnavailable,
			code:   CodeDisabled,
		},
		{
			name:   "not allowlisted",
			opts:   enabledOpts(),
			body:   FundRequest{Party: bob, Amount: "10"},
			status: http.StatusForbidden,
			code:   CodeNotAllowlisted,
		},
		{
			name:   "invalid amount",
			opts:   enabledOpts(),
			body:   FundRequest{Party: alice, Amount: "-1"},
			status: http.StatusBadRequest,
			code:   CodeInvalidInput,
		},
		{
			name:   "insufficient inventory",
			opts:   enabledOpts(),
			body:   FundRequest{Party: alice, Amount: "10"},
			status: http.StatusConflict,
			code:   CodeInsufficientInventory,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app, l := newFundApp(t, tc.opts)
			if tc.seed {
				ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("80"))
			}
			resp := postFund(t, app, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			defer resp.Body.Close()
			var body errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.ErrorType != string(tc.code) {
				t.Fatalf("errorType = %s, want %s", body.ErrorType, tc.code)
			}
		})
	}
}

func TestFundEndpointRateLimitCarriesRetryTime(t *testing.T) {
	app, l := newFundApp(t, enabledOpts())
	ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("80"))

	if resp := postFund(t, app, FundRequest{Party: alice, Amount: "10"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("first grant failed with %d", resp.StatusCode)
	}

	resp := postFund(t, app, FundRequest{Party: alice, Amount: "10"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	defer resp.Body.Close()
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.NextAllowedAt == nil {
		t.Fatalf("rate limit response must carry nextAllowedAt")
	}
}
