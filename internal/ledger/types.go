package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrContractNotActive occurs when a submitted batch references a
	// contract that has already been archived or never existed.
	ErrContractNotActive = errors.New("contract not active")

	// ErrMalformedContract indicates an active-contract entry whose payload
	// is missing required fields and therefore cannot be trusted.
	ErrMalformedContract = errors.New("malformed contract payload")
)

// SchemaKind identifies which token standard a contract conforms to.
type SchemaKind string

const (
	// SchemaLegacy is the original redeemable token standard.
	SchemaLegacy SchemaKind = "legacy"
	// SchemaCIP56 is the CIP-56 token standard.
	SchemaCIP56 SchemaKind = "cip56"
)

const (
	// ModuleBridge is the Daml module holding bridge templates.
	ModuleBridge = "Bridge"

	// EntityRedeemable is the legacy token template entity.
	EntityRedeemable = "Redeemable"
	// EntityCip56Token is the CIP-56 token template entity.
	EntityCip56Token = "Cip56Token"
	// EntityStakingService is the staking pool service template; its pooled
	// token ids must never be consumed as general inventory.
	EntityStakingService = "StakingService"
	// EntityBoostPool is the boost pool service template.
	EntityBoostPool = "BoostPool"
	// EntityDirectMintService is the operator mint service template.
	EntityDirectMintService = "DirectMintService"
)

// TemplateID identifies a Daml template. The ACS encodes it as the string
// "packageId:Module:Entity"; command submission encodes it as an object.
type TemplateID struct {
	PackageID string `json:"packageId"`
	Module    string `json:"moduleName"`
	Entity    string `json:"entityName"`
}

// ParseTemplateID splits the colon-delimited form returned by the ACS.
func ParseTemplateID(s string) (TemplateID, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return TemplateID{}, fmt.Errorf("template id %q: want packageId:Module:Entity", s)
	}
	return TemplateID{
		PackageID: parts[0],
		Module:    strings.Join(parts[1:len(parts)-1], ":"),
		Entity:    parts[len(parts)-1],
	}, nil
}

// String renders the colon-delimited ACS form.
func (t TemplateID) String() string {
	return t.PackageID + ":" + t.Module + ":" + t.Entity
}

// ActiveContract is one entry of the active contract set, with its payload
// still undecoded. Callers parse it at the boundary into typed records.
type ActiveContract struct {
	ID       string
	Template TemplateID
	Fields   map[string]any
}

// TokenContract is an immutable ledger-resident token balance. Contracts are
// consumed (archived) and replaced (created), never mutated in place.
type TokenContract struct {
	ID            string
	Owner         string
	Issuer        string
	Amount        decimal.Decimal
	Schema        SchemaKind
	AgreementHash string
	AgreementURI  string
}

// TokenEntity returns the template entity name for a schema kind.
func TokenEntity(schema SchemaKind) string {
	if schema == SchemaCIP56 {
		return EntityCip56Token
	}
	return EntityRedeemable
}

// SchemaForEntity maps a token template entity back to its schema kind.
func SchemaForEntity(entity string) (SchemaKind, bool) {
	switch entity {
	case EntityRedeemable:
		return SchemaLegacy, true
	case EntityCip56Token:
		return SchemaCIP56, true
	default:
		return "", false
	}
}

// ParseToken decodes an active contract into a TokenContract. Missing or
// malformed owner/amount fields reject the contract outright instead of
// letting zero values reach the selection arithmetic.
func ParseToken(ac ActiveContract) (TokenContract, error) {
	schema, ok := SchemaForEntity(ac.Template.Entity)
	if !ok {
		return TokenContract{}, fmt.Errorf("%w: %s is not a token template", ErrMalformedContract, ac.Template.Entity)
	}
	owner, ok := ac.Fields["owner"].(string)
	if !ok || owner == "" {
		return TokenContract{}, fmt.Errorf("%w: contract %s has no owner", ErrMalformedContract, ac.ID)
	}
	rawAmount, ok := ac.Fields["amount"].(string)
	if !ok {
		return TokenContract{}, fmt.Errorf("%w: contract %s has no amount", ErrMalformedContract, ac.ID)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return TokenContract{}, fmt.Errorf("%w: contract %s amount %q", ErrMalformedContract, ac.ID, rawAmount)
	}
	if amount.IsNegative() {
		return TokenContract{}, fmt.Errorf("%w: contract %s negative amount", ErrMalformedContract, ac.ID)
	}

	token := TokenContract{
		ID:     ac.ID,
		Owner:  owner,
		Amount: amount,
		Schema: schema,
	}
	if issuer, ok := ac.Fields["issuer"].(string); ok {
		token.Issuer = issuer
	}
	if hash, ok := ac.Fields["agreementHash"].(string); ok {
		token.AgreementHash = hash
	}
	if uri, ok := ac.Fields["agreementUri"].(string); ok {
		token.AgreementURI = uri
	}
	return token, nil
}

// TokenFields renders the create-argument payload for a token contract.
func TokenFields(token TokenContract) map[string]any {
	return map[string]any{
		"owner":         token.Owner,
		"issuer":        token.Issuer,
		"amount":        token.Amount.String(),
		"agreementHash": token.AgreementHash,
		"agreementUri":  token.AgreementURI,
	}
}

// CreateCommand instructs the ledger to create a contract.
type CreateCommand struct {
	TemplateID      TemplateID     `json:"templateId"`
	CreateArguments map[string]any `json:"createArguments"`
}

// ExerciseCommand exercises a choice on an existing contract. Archive is the
// only choice the conversion engine uses directly.
type ExerciseCommand struct {
	TemplateID     TemplateID     `json:"templateId"`
	ContractID     string         `json:"contractId"`
	Choice         string         `json:"choice"`
	ChoiceArgument map[string]any `json:"choiceArgument"`
}

// Command is the tagged union submitted to the ledger. Exactly one member is
// set.
type Command struct {
	Create   *CreateCommand   `json:"CreateCommand,omitempty"`
	Exercise *ExerciseCommand `json:"ExerciseCommand,omitempty"`
}

// NewCreate builds a create command.
func NewCreate(template TemplateID, fields map[string]any) Command {
	return Command{Create: &CreateCommand{TemplateID: template, CreateArguments: fields}}
}

// NewArchive builds an archive via the template's Archive choice.
func NewArchive(template TemplateID, contractID string) Command {
	return Command{Exercise: &ExerciseCommand{
		TemplateID:     template,
		ContractID:     contractID,
		Choice:         "Archive",
		ChoiceArgument: map[string]any{},
	}}
}

// Batch is a named, ordered command list applied all-or-nothing under a set
// of acting identities.
type Batch struct {
	CommandID string    `json:"commandId"`
	ActAs     []string  `json:"actAs"`
	ReadAs    []string  `json:"readAs"`
	Commands  []Command `json:"commands"`
}

// UpstreamError carries the HTTP status and body of a failed ledger call so
// callers can classify it for fallback decisions. Status 0 means the request
// never produced a response (network-level failure).
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("ledger unreachable: %s", e.Body)
	}
	return fmt.Sprintf("ledger returned %d: %s", e.Status, e.Body)
}

// StatusOf extracts the upstream status from an error chain. The second
// return is false when the error is not an upstream failure at all.
func StatusOf(err error) (int, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status, true
	}
	return 0, false
}

func decodeFields(raw json.RawMessage) (map[string]any, error) {
	fields := map[string]any{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
