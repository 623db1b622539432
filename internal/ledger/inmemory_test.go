package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInMemoryArchiveOnce(t *testing.T) {
	l := NewInMemory()
	template := TemplateID{PackageID: "pkg", Module: ModuleBridge, Entity: EntityRedeemable}
	cid := SeedToken(l, "pkg", "alice::1220aa", SchemaLegacy, decimal.RequireFromString("10"))

	// Double archive within one batch must reject the whole batch.
	err := l.Submit(context.Background(), Batch{
		CommandID: "b1",
		ActAs:     []string{"alice::1220aa"},
		Commands: []Command{
			NewArchive(template, cid),
			NewArchive(template, cid),
		},
	})
	status, ok := StatusOf(err)
	if !ok || status != 409 {
		t.Fatalf("expected 409 on double archive, got %v", err)
	}

	// The rejected batch left the contract untouched.
	contracts, err := l.ActiveContracts(context.Background(), "alice::1220aa", 0)
	if err != nil {
		t.Fatalf("ActiveContracts: %v", err)
	}
	if len(contracts) != 1 || contracts[0].ID != cid {
		t.Fatalf("a rejected batch must not mutate state: %+v", contracts)
	}
	if l.Submissions() != 0 {
		t.Fatalf("a rejected batch does not count as applied")
	}
}

func TestInMemoryAtomicBatch(t *testing.T) {
	l := NewInMemory()
	template := TemplateID{PackageID: "pkg", Module: ModuleBridge, Entity: EntityRedeemable}
	cid := SeedToken(l, "pkg", "alice::1220aa", SchemaLegacy, decimal.RequireFromString("10"))

	err := l.Submit(context.Background(), Batch{
		CommandID: "b1",
		ActAs:     []string{"alice::1220aa"},
		Commands: []Command{
			NewArchive(template, cid),
			NewCreate(template, TokenFields(TokenContract{
				Owner:  "bob::1220bb",
				Issuer: "alice::1220aa",
				Amount: decimal.RequireFromString("10"),
				Schema: SchemaLegacy,
			})),
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got, _ := l.ActiveContracts(context.Background(), "alice::1220aa", 0); len(got) != 0 {
		t.Fatalf("archived contract still visible: %+v", got)
	}
	got, _ := l.ActiveContracts(context.Background(), "bob::1220bb", 0)
	if len(got) != 1 {
		t.Fatalf("created contract missing: %+v", got)
	}

	before, _ := l.LedgerEnd(context.Background())
	if before == 0 {
		t.Fatalf("applied batch must advance the offset")
	}
}

func TestInMemoryArchiveUnknownContract(t *testing.T) {
	l := NewInMemory()
	template := TemplateID{PackageID: "pkg", Module: ModuleBridge, Entity: EntityRedeemable}

	err := l.Submit(context.Background(), Batch{
		CommandID: "b1",
		Commands:  []Command{NewArchive(template, "ghost")},
	})
	status, ok := StatusOf(err)
	if !ok || status != 409 {
		t.Fatalf("expected 409 for unknown contract, got %v", err)
	}
}
