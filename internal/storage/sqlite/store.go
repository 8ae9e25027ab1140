package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"theragraph/internal/metrics"
	"theragraph/internal/storage"
)

// Store keeps checkpoints in an embedded SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates the database file and its schema if needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps the pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS indexer_state (
  contract_address TEXT PRIMARY KEY,
  contract_type    TEXT NOT NULL,
  last_block       INTEGER NOT NULL,
  updated_at       INTEGER NOT NULL
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) LastBlock(ctx context.Context, contractAddress string) (uint64, bool, error) {
	key, err := storage.NormalizeAddress(contractAddress)
	if err != nil {
		return 0, false, err
	}

	var block int64
	err = s.db.QueryRowContext(ctx, `
SELECT last_block FROM indexer_state WHERE contract_address = ?;
`, key).Scan(&block)
	switch {
	case err == nil:
		return uint64(block), true, nil
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	default:
		metrics.CheckpointErrorInc("sqlite", "get")
		return 0, false, fmt.Errorf("get checkpoint: %w", err)
	}
}

func (s *Store) SaveLastBlock(ctx context.Context, contractAddress, contractType string, block uint64) error {
	key, err := storage.NormalizeAddress(contractAddress)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO indexer_state (contract_address, contract_type, last_block, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(contract_address) DO UPDATE SET
  last_block=MAX(indexer_state.last_block, excluded.last_block),
  contract_type=excluded.contract_type,
  updated_at=excluded.updated_at;
`, key, contractType, int64(block), time.Now().Unix())
	if err != nil {
		metrics.CheckpointErrorInc("sqlite", "save")
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	metrics.CheckpointWriteInc("sqlite")
	return nil
}

func (s *Store) List(ctx context.Context) ([]storage.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT contract_address, contract_type, last_block, updated_at
FROM indexer_state ORDER BY contract_address;
`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []storage.Checkpoint
	for rows.Next() {
		var (
			cp        storage.Checkpoint
			block     int64
			updatedAt int64
		)
		if err := rows.Scan(&cp.ContractAddress, &cp.ContractType, &block, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.LastBlock = uint64(block)
		cp.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, cp)
	}
	return out, rows.Err()
}
