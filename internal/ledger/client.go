package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the subset of the Canton JSON Ledger API v2 the conversion
// engine depends on. Queries always reflect committed state as of a ledger
// offset; Submit applies the whole batch atomically or not at all.
type Client interface {
	// LedgerEnd returns the current ledger-end offset.
	LedgerEnd(ctx context.Context) (int64, error)
	// ActiveContracts lists active contracts visible to party at offset.
	ActiveContracts(ctx context.Context, party string, offset int64) ([]ActiveContract, error)
	// Submit applies the batch all-or-nothing and waits for completion.
	Submit(ctx context.Context, batch Batch) error
}

// HTTPClient talks to a Canton participant over the JSON Ledger API v2, the
// same surface the operational scripts drive. Every call carries a bounded
// timeout; a call that exceeds it fails rather than hangs.
type HTTPClient struct {
	baseURL string
	token   string
	userID  string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPClient builds a ledger client for the given participant endpoint.
func NewHTTPClient(baseURL, token, userID string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  userID,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

type ledgerEndResponse struct {
	Offset int64 `json:"offset"`
}

// LedgerEnd fetches the current ledger-end offset.
func (c *HTTPClient) LedgerEnd(ctx context.Context) (int64, error) {
	var out ledgerEndResponse
	if err := c.do(ctx, http.MethodGet, "/v2/state/ledger-end", nil, &out); err != nil {
		return 0, err
	}
	return out.Offset, nil
}

type acsRequest struct {
	Filter         acsFilter `json:"filter"`
	ActiveAtOffset int64     `json:"activeAtOffset"`
}

type acsFilter struct {
	FiltersByParty map[string]acsPartyFilter `json:"filtersByParty"`
}

type acsPartyFilter struct {
	IdentifierFilter acsIdentifierFilter `json:"identifierFilter"`
}

type acsIdentifierFilter struct {
	WildcardFilter map[string]any `json:"wildcardFilter"`
}

type acsEntry struct {
	ContractEntry struct {
		JsActiveContract struct {
			CreatedEvent struct {
				ContractID     string          `json:"contractId"`
				TemplateID     string          `json:"templateId"`
				CreateArgument json.RawMessage `json:"createArgument"`
			} `json:"createdEvent"`
		} `json:"JsActiveContract"`
	} `json:"contractEntry"`
}

// ActiveContracts queries the ACS for everything party can see at offset.
// Entries with an unparsable template id are dropped; payloads stay raw for
// the caller to decode at its own boundary.
func (c *HTTPClient) ActiveContracts(ctx context.Context, party string, offset int64) ([]ActiveContract, error) {
	req := acsRequest{
		Filter: acsFilter{FiltersByParty: map[string]acsPartyFilter{
			party: {IdentifierFilter: acsIdentifierFilter{WildcardFilter: map[string]any{}}},
		}},
		ActiveAtOffset: offset,
	}

	var entries []acsEntry
	if err := c.do(ctx, http.MethodPost, "/v2/state/active-contracts", req, &entries); err != nil {
		return nil, err
	}

	contracts := make([]ActiveContract, 0, len(entries))
	for _, entry := range entries {
		ev := entry.ContractEntry.JsActiveContract.CreatedEvent
		if ev.ContractID == "" {
			continue
		}
		template, err := ParseTemplateID(ev.TemplateID)
		if err != nil {
			continue
		}
		fields, err := decodeFields(ev.CreateArgument)
		if err != nil {
			return nil, fmt.Errorf("decode contract %s payload: %w", ev.ContractID, err)
		}
		contracts = append(contracts, ActiveContract{ID: ev.ContractID, Template: template, Fields: fields})
	}
	return contracts, nil
}

type submitRequest struct {
	UserID    string    `json:"userId"`
	ActAs     []string  `json:"actAs"`
	ReadAs    []string  `json:"readAs"`
	CommandID string    `json:"commandId"`
	Commands  []Command `json:"commands"`
}

// Submit posts the batch to submit-and-wait. The participant applies the
// command list as a single transaction; partial application is never
// observable.
func (c *HTTPClient) Submit(ctx context.Context, batch Batch) error {
	req := submitRequest{
		UserID:    c.userID,
		ActAs:     batch.ActAs,
		ReadAs:    batch.ReadAs,
		CommandID: batch.CommandID,
		Commands:  batch.Commands,
	}
	if req.ReadAs == nil {
		req.ReadAs = []string{}
	}
	return c.do(ctx, http.MethodPost, "/v2/commands/submit-and-wait", req, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Status: 0, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Status: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
