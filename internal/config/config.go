package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAppName         = "CantonBridge"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultLedgerTimeout   = 20 * time.Second
	defaultIdempotencyTTL  = 5 * time.Minute
	defaultIdempotencyCap  = 1000
	defaultFundCooldown    = time.Minute
	defaultInventoryFloor  = "1000"
	defaultFundDailyCap    = "100"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	ledgerTimeoutEnvVar    = "LEDGER_TIMEOUT_SECONDS"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemCapacityEnvVar     = "IDEMPOTENCY_CAPACITY"
	aliasTableEnvVar       = "PARTY_ALIASES"
	aliasOverrideEnvVar    = "PARTY_ALIAS_ALLOW_OPERATOR"
	fallbackEnabledEnvVar  = "FALLBACK_ENABLED"
	fundEnabledEnvVar      = "FUNDING_ENABLED"
	fundAllowlistEnvVar    = "FUNDING_ALLOWLIST"
	fundDailyCapEnvVar     = "FUNDING_DAILY_CAP"
	fundCooldownEnvVar     = "FUNDING_COOLDOWN_SECONDS"
	inventoryFloorEnvVar   = "INVENTORY_FLOOR"
)

// Config captures application runtime configuration loaded from environment
// variables. It is read once at startup and passed into components; nothing
// re-reads ambient environment state per request.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	// Canton JSON Ledger API v2.
	LedgerBaseURL string
	LedgerToken   string
	LedgerUserID  string
	LedgerTimeout time.Duration
	PackageID     string

	// Parties.
	OperatorParty string

	// Alias table mapping requested party identifiers to canonical ones.
	PartyAliases       map[string]string
	AliasAllowOperator bool

	// Fallback policy: when false, classifier "allow" decisions are forced
	// to block (fail closed).
	FallbackEnabled bool

	// Operator-funded provisioning.
	FundingEnabled   bool
	FundingAllowlist []string
	FundingDailyCap  decimal.Decimal
	FundingCooldown  time.Duration

	// Replenisher floor.
	InventoryFloor decimal.Decimal

	DatabaseURL string
	RedisURL    string

	ShutdownPeriod      time.Duration
	IdempotencyTTL      time.Duration
	IdempotencyCapacity int
}

// Load reads configuration values from the environment and populates a
// Config instance. Missing required settings produce a ConfigError-style
// failure before the server starts.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LedgerBaseURL:       os.Getenv("LEDGER_BASE_URL"),
		LedgerToken:         os.Getenv("LEDGER_TOKEN"),
		LedgerUserID:        getEnv("LEDGER_USER_ID", "administrator"),
		LedgerTimeout:       defaultLedgerTimeout,
		PackageID:           os.Getenv("BRIDGE_PACKAGE_ID"),
		OperatorParty:       os.Getenv("OPERATOR_PARTY"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		IdempotencyCapacity: defaultIdempotencyCap,
		FundingCooldown:     defaultFundCooldown,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv(ledgerTimeoutEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", ledgerTimeoutEnvVar, err)
		}
		cfg.LedgerTimeout = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv(idemCapacityEnvVar); v != "" {
		capacity, err := strconv.Atoi(v)
		if err != nil || capacity <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", idemCapacityEnvVar, v)
		}
		cfg.IdempotencyCapacity = capacity
	}

	if v := os.Getenv(aliasTableEnvVar); v != "" {
		aliases := map[string]string{}
		if err := json.Unmarshal([]byte(v), &aliases); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", aliasTableEnvVar, err)
		}
		cfg.PartyAliases = aliases
	}

	cfg.AliasAllowOperator = boolEnv(aliasOverrideEnvVar, false)
	cfg.FallbackEnabled = boolEnv(fallbackEnabledEnvVar, false)
	cfg.FundingEnabled = boolEnv(fundEnabledEnvVar, false)

	if v := os.Getenv(fundAllowlistEnvVar); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.FundingAllowlist = append(cfg.FundingAllowlist, p)
			}
		}
	}

	dailyCap, err := decimal.NewFromString(getEnv(fundDailyCapEnvVar, defaultFundDailyCap))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", fundDailyCapEnvVar, err)
	}
	cfg.FundingDailyCap = dailyCap

	if v := os.Getenv(fundCooldownEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", fundCooldownEnvVar, err)
		}
		cfg.FundingCooldown = time.Duration(seconds) * time.Second
	}

	floor, err := decimal.NewFromString(getEnv(inventoryFloorEnvVar, defaultInventoryFloor))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", inventoryFloorEnvVar, err)
	}
	cfg.InventoryFloor = floor

	if cfg.LedgerBaseURL == "" {
		return Config{}, fmt.Errorf("LEDGER_BASE_URL must be set")
	}
	if cfg.OperatorParty == "" {
		return Config{}, fmt.Errorf("OPERATOR_PARTY must be set")
	}
	if cfg.PackageID == "" {
		return Config{}, fmt.Errorf("BRIDGE_PACKAGE_ID must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
