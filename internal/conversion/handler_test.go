package conversion

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/minted-protocol/canton-bridge/internal/ledger"
)

func newApp(t *testing.T) (*fiber.App, *ledger.InMemory) {
	return newAppWithFallback(t, false)
}

func newAppWithFallback(t *testing.T, fallbackEnabled bool) (*fiber.App, *ledger.InMemory) {
	t.Helper()
	svc, l, _ := newService(t)
	h := NewHandler(svc, fallbackEnabled)

	app := fiber.New()
	app.Post("/convert", h.Convert)
	app.Post("/redeem", h.Redeem)
	app.Get("/inventory", h.Inventory)
	return app, l
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestConvertEndpointSuccess(t *testing.T) {
	app, l := newApp(t)
	ledger.SeedToken(l, testPackage, alice, ledger.SchemaLegacy, dec("80"))
	ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("100"))

	resp := postJSON(t, app, "/convert", ExchangeRequest{Party: alice, Amount: "60"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[RecordResponse](t, resp)
	if !body.Success || body.ConvertedAmount != "60" || body.BatchID == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.SourceSchema != "legacy" || body.TargetSchema != "cip56" {
		t.Fatalf("unexpected schemas %+v", body)
	}
}

func TestConvertEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		seed      func(l *ledger.InMemory)
		body      ExchangeRequest
		status    int
		errorType ErrorType
	}{
		{
			name:      "invalid identity",
			seed:      func(*ledger.InMemory) {},
			body:      ExchangeRequest{Party: "not a party", Amount: "10"},
			status:    http.StatusBadRequest,
			errorType: TypeInvalidIdentity,
		},
		{
			name:      "invalid amount",
			seed:      func(*ledger.InMemory) {},
			body:      ExchangeRequest{Party: alice, Amount: "-1"},
			status:    http.StatusBadRequest,
			errorType: TypeInvalidInput,
		},
		{
			name: "insufficient balance",
			seed: func(l *ledger.InMemory) {
				ledger.SeedToken(l, testPackage, alice, ledger.SchemaLegacy, dec("5"))
			},
			body:      ExchangeRequest{Party: alice, Amount: "50"},
			status:    http.StatusBadRequest,
			errorType: TypeInsufficientBalance,
		},
		{
			name: "insufficient inventory",
			seed: func(l *ledger.InMemory) {
				ledger.SeedToken(l, testPackage, alice, ledger.SchemaLegacy, dec("50"))
				ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("5"))
			},
			body:      ExchangeRequest{Party: alice, Amount: "50"},
			status:    http.StatusConflict,
			errorType: TypeInsufficientInventory,
		},
		{
			name: "upstream failure",
			seed: func(l *ledger.InMemory) {
				ledger.SeedToken(l, testPackage, alice, ledger.SchemaLegacy, dec("50"))
				ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("100"))
				l.FailWith(503)
			},
			body:      ExchangeRequest{Party: alice, Amount: "50"},
			status:    http.StatusBadGateway,
			errorType: TypeUpstreamError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app, l := newApp(t)
			tc.seed(l)

			resp := postJSON(t, app, "/convert", tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			body := decodeBody[ErrorResponse](t, resp)
			if body.ErrorType != string(tc.errorType) {
				t.Fatalf("errorType = %s, want %s", body.ErrorType, tc.errorType)
			}
		})
	}
}

func TestConvertEndpointUpstreamFallbackAdvice(t *testing.T) {
	seed := func(l *ledger.InMemory) {
		ledger.SeedToken(l, testPackage, alice, ledger.SchemaLegacy, dec("50"))
		ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("100"))
		l.FailWith(503)
	}

	t.Run("fallback enabled", func(t *testing.T) {
		app, l := newAppWithFallback(t, true)
		seed(l)

		resp := postJSON(t, app, "/convert", ExchangeRequest{Party: alice, Amount: "50"})
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", resp.StatusCode)
		}
		body := decodeBody[ErrorResponse](t, resp)
		if body.Fallback == nil {
			t.Fatalf("expected fallback advice on an upstream failure")
		}
		if body.Fallback.Decision != "allow" || body.Fallback.Reason != "server-error" {
			t.Fatalf("unexpected advice %+v", body.Fallback)
		}
		if !body.Fallback.Permitted {
			t.Fatalf("expected a permitted fallback with the flag on")
		}
	})

	t.Run("fallback disabled", func(t *testing.T) {
		app, l := newAppWithFallback(t, false)
		seed(l)

		resp := postJSON(t, app, "/convert", ExchangeRequest{Party: alice, Amount: "50"})
		body := decodeBody[ErrorResponse](t, resp)
		if body.Fallback == nil || body.Fallback.Permitted {
			t.Fatalf("fallback must fail closed with the flag off, got %+v", body.Fallback)
		}
	})

	t.Run("absent on business errors", func(t *testing.T) {
		app, _ := newAppWithFallback(t, true)

		resp := postJSON(t, app, "/convert", ExchangeRequest{Party: alice, Amount: "-1"})
		body := decodeBody[ErrorResponse](t, resp)
		if body.Fallback != nil {
			t.Fatalf("advice must only accompany upstream failures, got %+v", body.Fallback)
		}
	})
}

func TestRedeemEndpoint(t *testing.T) {
	app, l := newApp(t)
	ledger.SeedToken(l, testPackage, alice, ledger.SchemaCIP56, dec("30"))
	ledger.SeedToken(l, testPackage, operator, ledger.SchemaLegacy, dec("30"))

	resp := postJSON(t, app, "/redeem", ExchangeRequest{Party: alice, Amount: "30"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[RecordResponse](t, resp)
	if body.SourceSchema != "cip56" || body.TargetSchema != "legacy" {
		t.Fatalf("unexpected schemas %+v", body)
	}
}

func TestInventoryEndpoint(t *testing.T) {
	app, l := newApp(t)
	ledger.SeedToken(l, testPackage, operator, ledger.SchemaCIP56, dec("70"))

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[InventoryResponse](t, resp)
	if body.Available != "70" || body.Contracts != 1 || body.Schema != "cip56" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestConvertEndpointMalformedBody(t *testing.T) {
	app, _ := newApp(t)

	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody[ErrorResponse](t, resp)
	if body.ErrorType != string(TypeInvalidInput) {
		t.Fatalf("errorType = %s, want INVALID_INPUT", body.ErrorType)
	}
}
