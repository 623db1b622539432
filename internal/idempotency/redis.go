package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "conversion:idem:v1:"

// RedisStore keeps conversion outcomes in Redis so multiple bridge instances
// share one idempotency window. Lookups run under a short internal timeout
// and fail absent: a cache outage degrades to resubmission, which the
// ledger's archive-once semantics keep safe.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed store; zero ttl takes the default.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get fetches and decodes the record for key; TTL expiry is delegated to
// Redis.
func (s *RedisStore) Get(key string) (Record, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return Record{}, false
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Record{}, false
	}
	return record, true
}

// Set stores the record under key with the configured TTL.
func (s *RedisStore) Set(key string, record Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	s.client.Set(ctx, redisKeyPrefix+key, payload, s.ttl)
}

// Has reports whether key is present.
func (s *RedisStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}
