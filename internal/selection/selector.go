package selection

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/minted-protocol/canton-bridge/internal/ledger"
)

var (
	// ErrInsufficientBalance occurs when a party's own tokens cannot cover
	// the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientInventory occurs when the operator pool cannot cover
	// the requested amount after reservation exclusions.
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// Epsilon absorbs fixed-point rounding when comparing accumulated sums
// against a target.
var Epsilon = decimal.RequireFromString("0.000001")

// SortByAmountDesc orders contracts descending by amount with a stable
// tie-break: equal amounts keep their original relative order. Select
// requires its input in this order; making the sort explicit here keeps the
// precondition out of callers' heads and the idempotency keys stable.
func SortByAmountDesc(contracts []ledger.TokenContract) []ledger.TokenContract {
	sorted := make([]ledger.TokenContract, len(contracts))
	copy(sorted, contracts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.GreaterThan(sorted[j].Amount)
	})
	return sorted
}

// Select greedily accumulates contracts until the running sum covers target
// within Epsilon. Contracts whose id appears in reserved are skipped
// entirely; pool-held collateral must never be consumed as general
// inventory. Precondition: contracts are ordered by SortByAmountDesc.
//
// The insufficiency error is generic here; callers wrap it as balance or
// inventory depending on whose tokens were scanned.
func Select(contracts []ledger.TokenContract, target decimal.Decimal, reserved map[string]bool) ([]ledger.TokenContract, decimal.Decimal, error) {
	var selected []ledger.TokenContract
	sum := decimal.Zero

	for _, contract := range contracts {
		if reserved[contract.ID] {
			continue
		}
		selected = append(selected, contract)
		sum = sum.Add(contract.Amount)
		if covers(sum, target) {
			return selected, sum, nil
		}
	}

	return nil, sum, ErrInsufficientBalance
}

// SelectInventory is Select with the insufficiency surfaced as an operator
// inventory condition.
func SelectInventory(contracts []ledger.TokenContract, target decimal.Decimal, reserved map[string]bool) ([]ledger.TokenContract, decimal.Decimal, error) {
	selected, sum, err := Select(contracts, target, reserved)
	if err != nil {
		return nil, sum, ErrInsufficientInventory
	}
	return selected, sum, nil
}

func covers(sum, target decimal.Decimal) bool {
	return sum.GreaterThanOrEqual(target.Sub(Epsilon))
}
