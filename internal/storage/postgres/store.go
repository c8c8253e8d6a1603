package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pool_registry (
	id BIGSERIAL PRIMARY KEY,
	pool_address TEXT NOT NULL,
	ledger BIGINT NOT NULL DEFAULT 0,
	event_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name TEXT PRIMARY KEY,
	last_ledger BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the pool registry and ingestion state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the registry and state tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Append inserts a registry row. Duplicate addresses are kept.
func (s *Store) Append(ctx context.Context, entry model.RegistryEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_registry (pool_address, ledger, event_id, created_at)
		VALUES ($1, $2, $3, now())
	`, entry.Address, int64(entry.Ledger), entry.EventID)
	return err
}

// AppendBatch inserts several registry rows in one round trip, preserving order.
func (s *Store) AppendBatch(ctx context.Context, entries []model.RegistryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(`
			INSERT INTO pool_registry (pool_address, ledger, event_id, created_at)
			VALUES ($1, $2, $3, now())
		`, entry.Address, int64(entry.Ledger), entry.EventID)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListAll returns every registry row in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]model.RegistryEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT pool_address, ledger, event_id FROM pool_registry ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.RegistryEntry
	for rows.Next() {
		var (
			entry  model.RegistryEntry
			ledger int64
		)
		if err := rows.Scan(&entry.Address, &ledger, &entry.EventID); err != nil {
			return nil, err
		}
		entry.Ledger = uint32(ledger)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LoadState returns the last processed ledger for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint32, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ledger int64
	row := s.pool.QueryRow(ctx, `SELECT last_ledger FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ledger); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint32(ledger), true, nil
}

// SaveState upserts the last processed ledger for a name.
func (s *Store) SaveState(ctx context.Context, name string, ledger uint32) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_ledger, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_ledger = EXCLUDED.last_ledger, updated_at = now()
	`, name, int64(ledger))
	return err
}
