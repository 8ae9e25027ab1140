package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrAddressRequired is returned when a checkpoint is addressed with an empty contract.
var ErrAddressRequired = errors.New("contract address required")

// Checkpoint is the persisted progress of one contract.
type Checkpoint struct {
	ContractAddress string    `json:"contract_address"`
	ContractType    string    `json:"contract_type"`
	LastBlock       uint64    `json:"last_block"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CheckpointStore persists the last processed block per contract. Rows are
// keyed by the lower-cased address only, and last_block never decreases.
type CheckpointStore interface {
	LastBlock(ctx context.Context, contractAddress string) (uint64, bool, error)
	SaveLastBlock(ctx context.Context, contractAddress, contractType string, block uint64) error
	List(ctx context.Context) ([]Checkpoint, error)
	Ping(ctx context.Context) error
	Close() error
}

// Sink receives batches of records, e.g. replayed events.
type Sink[T any] interface {
	PutBatch(records []T) error
}

// NormalizeAddress returns the checkpoint key for an address.
func NormalizeAddress(address string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	if key == "" {
		return "", ErrAddressRequired
	}
	return key, nil
}
