package canary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minted-protocol/canton-bridge/internal/conversion"
)

// Client drives the bridge's public HTTP surface the way an external
// consumer would; the canary deliberately avoids in-process shortcuts.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a canary client for the given bridge endpoint.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ExchangeOutcome captures one convert/redeem call: either the record or
// the typed error the surface returned.
type ExchangeOutcome struct {
	StatusCode int
	Record     conversion.RecordResponse
	ErrorType  string
	ErrorBody  string
}

// OK reports whether the call produced a successful conversion record.
func (o ExchangeOutcome) OK() bool {
	return o.StatusCode == http.StatusOK && o.Record.Success
}

// Healthz probes the liveness endpoint.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz returned %d", resp.StatusCode)
	}
	return nil
}

// Inventory fetches the operator pool summary.
func (c *Client) Inventory(ctx context.Context) (conversion.InventoryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/inventory", nil)
	if err != nil {
		return conversion.InventoryResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return conversion.InventoryResponse{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return conversion.InventoryResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return conversion.InventoryResponse{}, fmt.Errorf("inventory returned %d: %s", resp.StatusCode, raw)
	}
	var inv conversion.InventoryResponse
	if err := json.Unmarshal(raw, &inv); err != nil {
		return conversion.InventoryResponse{}, err
	}
	return inv, nil
}

// Convert posts a conversion request.
func (c *Client) Convert(ctx context.Context, party, amount string) (ExchangeOutcome, error) {
	return c.exchange(ctx, "/api/v1/convert", party, amount)
}

// Redeem posts a redemption request.
func (c *Client) Redeem(ctx context.Context, party, amount string) (ExchangeOutcome, error) {
	return c.exchange(ctx, "/api/v1/redeem", party, amount)
}

func (c *Client) exchange(ctx context.Context, path, party, amount string) (ExchangeOutcome, error) {
	payload, err := json.Marshal(conversion.ExchangeRequest{Party: party, Amount: amount})
	if err != nil {
		return ExchangeOutcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return ExchangeOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ExchangeOutcome{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExchangeOutcome{}, err
	}

	outcome := ExchangeOutcome{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, &outcome.Record); err != nil {
			return ExchangeOutcome{}, err
		}
		return outcome, nil
	}

	var body conversion.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		outcome.ErrorType = body.ErrorType
		outcome.ErrorBody = body.Error
	} else {
		outcome.ErrorBody = string(raw)
	}
	return outcome, nil
}
