package doctor

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/minted-protocol/canton-bridge/internal/identity"
	"github.com/minted-protocol/canton-bridge/internal/ledger"
)

// EnvCheck validates the shape of the required environment-derived settings
// without touching the network.
type EnvCheck struct {
	OperatorParty string
	LedgerBaseURL string
	PackageID     string
}

func (EnvCheck) Name() string { return "environment" }

func (c EnvCheck) Run(_ context.Context) CheckResult {
	var problems []string
	if err := identity.Validate(c.OperatorParty); err != nil {
		problems = append(problems, fmt.Sprintf("operator party: %v", err))
	}
	if u, err := url.Parse(c.LedgerBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("ledger base url %q is not an http(s) endpoint", c.LedgerBaseURL))
	}
	if len(c.PackageID) != 64 || !isHex(c.PackageID) {
		problems = append(problems, fmt.Sprintf("package id %q is not a 64-char hex digest", c.PackageID))
	}
	if len(problems) > 0 {
		return CheckResult{Name: c.Name(), Status: StatusFail, Detail: strings.Join(problems, "; ")}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass}
}

// ReachabilityCheck probes the participant's ledger-end endpoint.
type ReachabilityCheck struct {
	Ledger ledger.Client
}

func (ReachabilityCheck) Name() string { return "ledger-reachability" }

func (c ReachabilityCheck) Run(ctx context.Context) CheckResult {
	offset, err := c.Ledger.LedgerEnd(ctx)
	if err != nil {
		return CheckResult{Name: c.Name(), Status: StatusFail, Detail: err.Error()}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Detail: fmt.Sprintf("ledger end offset %d", offset)}
}

// InventoryCheck compares the operator's spendable pool against the
// configured floor. Below-floor is a warning (the replenisher's job), an
// unreadable pool is a failure.
type InventoryCheck struct {
	Inventory func(ctx context.Context) (decimal.Decimal, error)
	Floor     decimal.Decimal
}

func (InventoryCheck) Name() string { return "inventory-floor" }

func (c InventoryCheck) Run(ctx context.Context) CheckResult {
	available, err := c.Inventory(ctx)
	if err != nil {
		return CheckResult{Name: c.Name(), Status: StatusFail, Detail: err.Error()}
	}
	if available.LessThan(c.Floor) {
		return CheckResult{
			Name:   c.Name(),
			Status: StatusWarn,
			Detail: fmt.Sprintf("available %s below floor %s", available, c.Floor),
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Detail: fmt.Sprintf("available %s", available)}
}

// DriftCheck scans source trees for stale literals, typically package ids
// or party ids left hardcoded after a redeployment changed them. A hit
// means some component is pinned to a ledger state that no longer exists.
type DriftCheck struct {
	Roots         []string
	StaleLiterals []string
}

func (DriftCheck) Name() string { return "literal-drift" }

var scanExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true,
	".py": true, ".json": true, ".yaml": true, ".yml": true, ".env": true,
}

func (c DriftCheck) Run(_ context.Context) CheckResult {
	if len(c.StaleLiterals) == 0 {
		return CheckResult{Name: c.Name(), Status: StatusPass, Detail: "no stale literals configured"}
	}

	var hits []string
	for _, root := range c.Roots {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if name := d.Name(); name == "node_modules" || name == ".git" || name == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			if !scanExtensions[filepath.Ext(path)] {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			text := string(content)
			for _, literal := range c.StaleLiterals {
				if strings.Contains(text, literal) {
					hits = append(hits, fmt.Sprintf("%s contains %s", path, abbreviate(literal)))
				}
			}
			return nil
		})
	}

	if len(hits) > 0 {
		return CheckResult{Name: c.Name(), Status: StatusFail, Detail: strings.Join(hits, "; ")}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass}
}

func abbreviate(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
