package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversion outcomes durably, for deployments that
// need conversion history to survive a process restart. Same interface, so
// it swaps in behind the orchestrator without touching call sites.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgresStore builds a postgres-backed store; zero ttl takes the
// default.
func NewPostgresStore(pool *pgxpool.Pool, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{pool: pool, ttl: ttl}
}

// Migrate creates the backing table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversion_records (
			idem_key   TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Get fetches the record for key if it has not expired.
func (s *PostgresStore) Get(key string) (Record, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM conversion_records WHERE idem_key = $1 AND expires_at > now()`,
		key).Scan(&raw)
	if err != nil {
		return Record{}, false
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, false
	}
	return record, true
}

// Set upserts the record under key with a fresh expiry.
func (s *PostgresStore) Set(key string, record Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	s.pool.Exec(ctx, `
		INSERT INTO conversion_records (idem_key, record, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (idem_key) DO UPDATE SET record = EXCLUDED.record, expires_at = EXCLUDED.expires_at`,
		key, payload, s.ttl)
}

// Has reports whether key is present and unexpired.
func (s *PostgresStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}
