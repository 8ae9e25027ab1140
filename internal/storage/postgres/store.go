package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"theragraph/internal/metrics"
	"theragraph/internal/storage"
)

// Store provides Postgres persistence for indexer checkpoints.
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

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates indexer_state when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS indexer_state (
			contract_address TEXT PRIMARY KEY,
			contract_type    TEXT NOT NULL,
			last_block       BIGINT NOT NULL,
			inserted_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create indexer_state: %w", err)
	}
	return nil
}

// LastBlock returns last_block for a contract.
func (s *Store) LastBlock(ctx context.Context, contractAddress string) (uint64, bool, error) {
	key, err := storage.NormalizeAddress(contractAddress)
	if err != nil {
		return 0, false, err
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM indexer_state WHERE contract_address = $1`, key)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		metrics.CheckpointErrorInc("postgres", "get")
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveLastBlock upserts the checkpoint. The contract type is overwritten, the
// block only moves forward.
func (s *Store) SaveLastBlock(ctx context.Context, contractAddress, contractType string, block uint64) error {
	key, err := storage.NormalizeAddress(contractAddress)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO indexer_state (contract_address, contract_type, last_block, inserted_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (contract_address) DO UPDATE
		SET last_block = GREATEST(indexer_state.last_block, EXCLUDED.last_block),
			contract_type = EXCLUDED.contract_type,
			updated_at = now()
	`, key, contractType, int64(block))
	if err != nil {
		metrics.CheckpointErrorInc("postgres", "save")
		return err
	}
	metrics.CheckpointWriteInc("postgres")
	return nil
}

// List returns every checkpoint ordered by address.
func (s *Store) List(ctx context.Context) ([]storage.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contract_address, contract_type, last_block, updated_at
		FROM indexer_state ORDER BY contract_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Checkpoint
	for rows.Next() {
		var (
			cp    storage.Checkpoint
			block int64
		)
		if err := rows.Scan(&cp.ContractAddress, &cp.ContractType, &block, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		cp.LastBlock = uint64(block)
		out = append(out, cp)
	}
	return out, rows.Err()
}
