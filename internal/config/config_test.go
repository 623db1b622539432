package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LEDGER_BASE_URL", "https://participant:7575")
	t.Setenv("OPERATOR_PARTY", "operator::1220aa")
	t.Setenv("BRIDGE_PACKAGE_ID", strings.Repeat("ab", 32))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.IdempotencyTTL != 5*time.Minute || cfg.IdempotencyCapacity != 1000 {
		t.Fatalf("unexpected idempotency defaults %+v", cfg)
	}
	if cfg.FallbackEnabled || cfg.FundingEnabled {
		t.Fatalf("risky features must default off")
	}
	if !cfg.FundingDailyCap.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("funding cap default = %s", cfg.FundingDailyCap)
	}
	if cfg.LedgerUserID != "administrator" {
		t.Fatalf("ledger user default = %s", cfg.LedgerUserID)
	}
}

func TestLoadRequiredSettings(t *testing.T) {
	cases := []string{"LEDGER_BASE_URL", "OPERATOR_PARTY", "BRIDGE_PACKAGE_ID"}
	for _, missing := range cases {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")
			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s is unset", missing)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "120")
	t.Setenv("FUNDING_ENABLED", "true")
	t.Setenv("FUNDING_ALLOWLIST", "alice::1220bb, bob::1220cc,")
	t.Setenv("PARTY_ALIASES", `{"legacyUser":"alice::1220bb"}`)
	t.Setenv("FALLBACK_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.IdempotencyTTL != 2*time.Minute {
		t.Fatalf("overrides not applied %+v", cfg)
	}
	if !cfg.FundingEnabled || !cfg.FallbackEnabled {
		t.Fatalf("boolean overrides not applied %+v", cfg)
	}
	if len(cfg.FundingAllowlist) != 2 || cfg.FundingAllowlist[1] != "bob::1220cc" {
		t.Fatalf("allowlist parsing wrong: %v", cfg.FundingAllowlist)
	}
	if cfg.PartyAliases["legacyUser"] != "alice::1220bb" {
		t.Fatalf("alias table parsing wrong: %v", cfg.PartyAliases)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	setRequired(t)
	t.Setenv("PARTY_ALIASES", "{not json")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed alias table")
	}

	setRequired(t)
	t.Setenv("PARTY_ALIASES", "")
	t.Setenv("IDEMPOTENCY_CAPACITY", "-5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-positive capacity")
	}
}

func TestAddress(t *testing.T) {
	if got := (Config{Port: "8080"}).Address(); got != ":8080" {
		t.Fatalf("Address = %s", got)
	}
	if got := (Config{Port: ":9000"}).Address(); got != ":9000" {
		t.Fatalf("Address = %s", got)
	}
}
