package idempotency

import (
	"container/list"
	"sync"
	"time"
)

// Record is the memoized outcome of a conversion, retrievable by key. It is
// written once and never mutated.
type Record struct {
	Success          bool      `json:"success"`
	ConvertedAmount  string    `json:"convertedAmount"`
	SourceSchema     string    `json:"sourceSchema"`
	TargetSchema     string    `json:"targetSchema"`
	BatchID          string    `json:"batchId"`
	LockedSourceIDs  []string  `json:"lockedSourceIds"`
	ReleasedTokenIDs []string  `json:"releasedSourceIds"`
	Timestamp        time.Time `json:"timestamp"`
}

// Store memoizes operation outcomes by idempotency key. Implementations are
// safe for concurrent use. Within a single process and TTL window a key sees
// at most one effect; this is advisory, not a ledger-level lock: the
// ledger's archive-once semantics remain the final backstop.
type Store interface {
	Get(key string) (Record, bool)
	Set(key string, record Record)
	Has(key string) bool
}

const (
	// DefaultTTL bounds how long an outcome short-circuits resubmission.
	DefaultTTL = 5 * time.Minute
	// DefaultCapacity bounds the number of retained outcomes.
	DefaultCapacity = 1000

	pruneInterval = 30 * time.Second
)

type memoryEntry struct {
	key       string
	record    Record
	expiresAt time.Time
}

// MemoryStore is a bounded, time-boxed, in-process store. Eviction at
// capacity removes the earliest-inserted entry; reads do not refresh
// position. Expired entries are swept lazily, at most once per prune
// interval, piggybacked on any call.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	capacity  int
	order     *list.List
	entries   map[string]*list.Element
	lastPrune time.Time
	now       func() time.Time
}

// NewMemoryStore builds a store with the given ttl and capacity; zero values
// take the defaults.
func NewMemoryStore(ttl time.Duration, capacity int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		ttl:      ttl,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the record for key if present and unexpired. An expired entry
// is deleted and reported absent.
func (s *MemoryStore) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybePrune()

	elem, ok := s.entries[key]
	if !ok {
		return Record{}, false
	}
	entry := elem.Value.(*memoryEntry)
	if s.now().After(entry.expiresAt) {
		s.remove(elem)
		return Record{}, false
	}
	return entry.record, true
}

// Set stores the record under key. At capacity the earliest-inserted entry
// is evicted first.
func (s *MemoryStore) Set(key string, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybePrune()

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.record = record
		entry.expiresAt = s.now().Add(s.ttl)
		return
	}

	for len(s.entries) >= s.capacity {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		s.remove(oldest)
	}

	elem := s.order.PushBack(&memoryEntry{key: key, record: record, expiresAt: s.now().Add(s.ttl)})
	s.entries[key] = elem
}

// Has reports whether key is present and unexpired.
func (s *MemoryStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len reports the number of retained entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) maybePrune() {
	now := s.now()
	if now.Sub(s.lastPrune) < pruneInterval {
		return
	}
	s.lastPrune = now

	var next *list.Element
	for elem := s.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		if now.After(elem.Value.(*memoryEntry).expiresAt) {
			s.remove(elem)
		}
	}
}

func (s *MemoryStore) remove(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	s.order.Remove(elem)
	delete(s.entries, entry.key)
}
