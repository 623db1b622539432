package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseTemplateID(t *testing.T) {
	id, err := ParseTemplateID("pkg123:Bridge:Redeemable")
	if err != nil {
		t.Fatalf("ParseTemplateID: %v", err)
	}
	if id.PackageID != "pkg123" || id.Module != "Bridge" || id.Entity != "Redeemable" {
		t.Fatalf("unexpected template %+v", id)
	}
	if id.String() != "pkg123:Bridge:Redeemable" {
		t.Fatalf("round trip mismatch: %s", id.String())
	}

	nested, err := ParseTemplateID("pkg:A:B:Entity")
	if err != nil {
		t.Fatalf("ParseTemplateID nested: %v", err)
	}
	if nested.Module != "A:B" || nested.Entity != "Entity" {
		t.Fatalf("nested module mishandled: %+v", nested)
	}

	if _, err := ParseTemplateID("pkg:NoEntity"); err == nil {
		t.Fatalf("expected error for malformed template id")
	}
}

func TestSchemaMapping(t *testing.T) {
	if TokenEntity(SchemaLegacy) != EntityRedeemable || TokenEntity(SchemaCIP56) != EntityCip56Token {
		t.Fatalf("schema to entity mapping broken")
	}
	if s, ok := SchemaForEntity(EntityRedeemable); !ok || s != SchemaLegacy {
		t.Fatalf("entity to schema mapping broken")
	}
	if _, ok := SchemaForEntity(EntityStakingService); ok {
		t.Fatalf("service template must not map to a token schema")
	}
}

func TestParseTokenStrict(t *testing.T) {
	template := TemplateID{PackageID: "pkg", Module: ModuleBridge, Entity: EntityRedeemable}

	token, err := ParseToken(ActiveContract{
		ID:       "cid-1",
		Template: template,
		Fields: map[string]any{
			"owner":         "alice::1220aa",
			"issuer":        "operator::1220bb",
			"amount":        "12.5",
			"agreementHash": "hash",
			"agreementUri":  "https://terms",
		},
	})
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if token.Owner != "alice::1220aa" || !token.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected token %+v", token)
	}
	if token.Schema != SchemaLegacy || token.AgreementHash != "hash" {
		t.Fatalf("unexpected token %+v", token)
	}

	bad := []map[string]any{
		{"amount": "10"},                            // no owner
		{"owner": "alice::1220aa"},                  // no amount
		{"owner": "alice::1220aa", "amount": "abc"}, // non-decimal
		{"owner": "alice::1220aa", "amount": "-1"},  // negative
		{"owner": 42, "amount": "10"},               // wrong type
	}
	for i, fields := range bad {
		_, err := ParseToken(ActiveContract{ID: "cid-x", Template: template, Fields: fields})
		if !errors.Is(err, ErrMalformedContract) {
			t.Errorf("case %d: expected ErrMalformedContract, got %v", i, err)
		}
	}

	_, err = ParseToken(ActiveContract{
		ID:       "cid-2",
		Template: TemplateID{PackageID: "pkg", Module: ModuleBridge, Entity: EntityBoostPool},
		Fields:   map[string]any{"owner": "alice::1220aa", "amount": "10"},
	})
	if !errors.Is(err, ErrMalformedContract) {
		t.Fatalf("expected non-token template to be rejected, got %v", err)
	}
}

func TestTokenFieldsRoundTrip(t *testing.T) {
	original := TokenContract{
		Owner:  "alice::1220aa",
		Issuer: "operator::1220bb",
		Amount: decimal.RequireFromString("3.25"),
		Schema: SchemaCIP56,
	}
	ac := ActiveContract{
		ID:       "cid-1",
		Template: TemplateID{PackageID: "pkg", Module: ModuleBridge, Entity: EntityCip56Token},
		Fields:   TokenFields(original),
	}
	parsed, err := ParseToken(ac)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed.Owner != original.Owner || !parsed.Amount.Equal(original.Amount) || parsed.Schema != SchemaCIP56 {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestStatusOf(t *testing.T) {
	if status, ok := StatusOf(&UpstreamError{Status: 409}); !ok || status != 409 {
		t.Fatalf("StatusOf lost the status")
	}
	if _, ok := StatusOf(errors.New("plain")); ok {
		t.Fatalf("plain errors carry no upstream status")
	}
}
