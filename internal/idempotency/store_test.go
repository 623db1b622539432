package idempotency

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestKeyIgnoresSourceOrder(t *testing.T) {
	amount := decimal.RequireFromString("25")
	a := Key("convert", []string{"cid-2", "cid-1", "cid-3"}, amount, "alice::1220aa")
	b := Key("convert", []string{"cid-3", "cid-1", "cid-2"}, amount, "alice::1220aa")
	if a != b {
		t.Fatalf("keys differ across source orderings: %s vs %s", a, b)
	}
}

func TestKeyDiscriminates(t *testing.T) {
	amount := decimal.RequireFromString("25")
	base := Key("convert", []string{"cid-1"}, amount, "alice::1220aa")

	if base == Key("redeem", []string{"cid-1"}, amount, "alice::1220aa") {
		t.Fatalf("prefix not bound into key")
	}
	if base == Key("convert", []string{"cid-2"}, amount, "alice::1220aa") {
		t.Fatalf("source ids not bound into key")
	}
	if base == Key("convert", []string{"cid-1"}, decimal.RequireFromString("26"), "alice::1220aa") {
		t.Fatalf("amount not bound into key")
	}
	if base == Key("convert", []string{"cid-1"}, amount, "bob::1220bb") {
		t.Fatalf("party not bound into key")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute, 10)
	record := Record{Success: true, BatchID: "batch-1", ConvertedAmount: "25"}

	store.Set("k1", record)
	got, ok := store.Get("k1")
	if !ok || got.BatchID != "batch-1" {
		t.Fatalf("expected stored record, got %+v ok=%v", got, ok)
	}
	if !store.Has("k1") {
		t.Fatalf("expected Has to report presence")
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("expected absent key to miss")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute, 10)
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Set("k1", Record{BatchID: "batch-1"})

	now = now.Add(61 * time.Second)
	if _, ok := store.Get("k1"); ok {
		t.Fatalf("expected expired entry to be absent")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be deleted on read, len=%d", store.Len())
	}
}

func TestMemoryStoreInsertionOrderEviction(t *testing.T) {
	store := NewMemoryStore(time.Minute, 3)
	for i := 1; i <= 3; i++ {
		store.Set(fmt.Sprintf("k%d", i), Record{BatchID: fmt.Sprintf("b%d", i)})
	}

	// Reads must not refresh position: k1 stays the eviction candidate.
	if _, ok := store.Get("k1"); !ok {
		t.Fatalf("expected k1 present")
	}

	store.Set("k4", Record{BatchID: "b4"})
	if _, ok := store.Get("k1"); ok {
		t.Fatalf("expected earliest-inserted k1 to be evicted")
	}
	for _, k := range []string{"k2", "k3", "k4"} {
		if _, ok := store.Get(k); !ok {
			t.Fatalf("expected %s to survive eviction", k)
		}
	}
}

func TestMemoryStoreLazyPrune(t *testing.T) {
	store := NewMemoryStore(time.Second, 10)
	now := time.Now()
	store.now = func() time.Time { return now }
	store.lastPrune = now

	store.Set("k1", Record{BatchID: "b1"})
	store.Set("k2", Record{BatchID: "b2"})

	// Expired, but within the prune interval: entries linger until a call
	// arrives after the interval elapses.
	now = now.Add(5 * time.Second)
	store.Set("k3", Record{BatchID: "b3"})
	if store.Len() != 3 {
		t.Fatalf("expected lingering entries inside prune interval, len=%d", store.Len())
	}

	now = now.Add(31 * time.Second)
	store.Set("k4", Record{BatchID: "b4"})
	if store.Len() != 1 {
		t.Fatalf("expected sweep to drop expired entries, len=%d", store.Len())
	}
}
