package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Key derives a deterministic digest for a logical operation. Source ids are
// sorted before hashing so two logically identical requests produce the same
// key regardless of ledger query ordering.
func Key(prefix string, sourceIDs []string, amount decimal.Decimal, actingParty string, extra ...string) string {
	sorted := make([]string, len(sourceIDs))
	copy(sorted, sourceIDs)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write([]byte(amount.String()))
	h.Write([]byte{0})
	h.Write([]byte(actingParty))
	for _, e := range extra {
		h.Write([]byte{0})
		h.Write([]byte(e))
	}
	return hex.EncodeToString(h.Sum(nil))
}
