package funding

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Window is the rolling quota window.
	Window = 24 * time.Hour
	// maxTrackedParties bounds the quota store; the party with the oldest
	// activity is evicted first.
	maxTrackedParties = 10_000
)

type quota struct {
	timestamps []time.Time
	amounts    []decimal.Decimal
	lastEvent  time.Time
}

// RateLimiter enforces a per-party cooldown and a rolling 24h amount cap.
// Both checks run before any ledger I/O. Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	dailyCap decimal.Decimal
	quotas   map[string]*quota
	now      func() time.Time
}

// NewRateLimiter builds a limiter with the given cooldown and daily cap.
func NewRateLimiter(cooldown time.Duration, dailyCap decimal.Decimal) *RateLimiter {
	return &RateLimiter{
		cooldown: cooldown,
		dailyCap: dailyCap,
		quotas:   make(map[string]*quota),
		now:      time.Now,
	}
}

// Check verifies party may receive requested now. On rejection it returns
// false and the earliest time a retry could succeed.
func (r *RateLimiter) Check(party string, requested decimal.Decimal) (bool, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	used := decimal.Zero
	q, tracked := r.quotas[party]
	if tracked {
		r.prune(q, now)

		if since := now.Sub(q.lastEvent); since < r.cooldown {
			return false, q.lastEvent.Add(r.cooldown)
		}
		for _, a := range q.amounts {
			used = used.Add(a)
		}
	}

	// The cap applies to untracked parties too: a first request above the
	// daily cap can never be granted.
	if used.Add(requested).GreaterThan(r.dailyCap) {
		next := now.Add(Window)
		if tracked && len(q.timestamps) > 0 {
			next = q.timestamps[0].Add(Window)
		}
		return false, next
	}
	return true, now
}

// Record appends a successful operation to the party's history, evicting the
// least recently active party once the store is full.
func (r *RateLimiter) Record(party string, amount decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	q, ok := r.quotas[party]
	if !ok {
		if len(r.quotas) >= maxTrackedParties {
			r.evictOldest()
		}
		q = &quota{}
		r.quotas[party] = q
	}
	r.prune(q, now)
	q.timestamps = append(q.timestamps, now)
	q.amounts = append(q.amounts, amount)
	q.lastEvent = now
}

// Remaining reports how much of the daily cap party still has.
func (r *RateLimiter) Remaining(party string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.quotas[party]
	if !ok {
		return r.dailyCap
	}
	r.prune(q, r.now())

	used := decimal.Zero
	for _, a := range q.amounts {
		used = used.Add(a)
	}
	remaining := r.dailyCap.Sub(used)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// prune drops events older than the rolling window. Callers hold the lock.
func (r *RateLimiter) prune(q *quota, now time.Time) {
	cutoff := now.Add(-Window)
	keep := 0
	for i, ts := range q.timestamps {
		if ts.After(cutoff) {
			keep = i
			q.timestamps = q.timestamps[keep:]
			q.amounts = q.amounts[keep:]
			return
		}
	}
	q.timestamps = nil
	q.amounts = nil
}

func (r *RateLimiter) evictOldest() {
	var oldestParty string
	var oldestAt time.Time
	for party, q := range r.quotas {
		if oldestParty == "" || q.lastEvent.Before(oldestAt) {
			oldestParty = party
			oldestAt = q.lastEvent
		}
	}
	if oldestParty != "" {
		delete(r.quotas, oldestParty)
	}
}
