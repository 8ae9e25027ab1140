package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"theragraph/internal/metrics"
)

// FileStore keeps every contract's checkpoint in a single JSON document,
// rewritten through a temp file and rename on each save.
type FileStore struct {
	path string

	mu          sync.Mutex
	checkpoints map[string]Checkpoint
}

// OpenFileStore loads path if it exists. A missing file starts empty.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, checkpoints: make(map[string]Checkpoint)}

	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("stat checkpoint file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var list []Checkpoint
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse checkpoint file: %w", err)
	}
	for _, cp := range list {
		key, err := NormalizeAddress(cp.ContractAddress)
		if err != nil {
			continue
		}
		cp.ContractAddress = key
		s.checkpoints[key] = cp
	}
	return s, nil
}

func (s *FileStore) LastBlock(_ context.Context, contractAddress string) (uint64, bool, error) {
	key, err := NormalizeAddress(contractAddress)
	if err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	cp, ok := s.checkpoints[key]
	s.mu.Unlock()
	return cp.LastBlock, ok, nil
}

func (s *FileStore) SaveLastBlock(_ context.Context, contractAddress, contractType string, block uint64) error {
	key, err := NormalizeAddress(contractAddress)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.checkpoints[key]
	prev := cp
	cp.ContractAddress = key
	cp.ContractType = contractType
	if block > cp.LastBlock {
		cp.LastBlock = block
	}
	cp.UpdatedAt = time.Now().UTC()
	s.checkpoints[key] = cp

	if err := s.writeLocked(); err != nil {
		if prev.ContractAddress == "" {
			delete(s.checkpoints, key)
		} else {
			s.checkpoints[key] = prev
		}
		metrics.CheckpointErrorInc("file", "save")
		return err
	}
	metrics.CheckpointWriteInc("file")
	return nil
}

func (s *FileStore) List(_ context.Context) ([]Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), nil
}

func (s *FileStore) Ping(_ context.Context) error {
	return ensureDir(s.path)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) sortedLocked() []Checkpoint {
	out := make([]Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractAddress < out[j].ContractAddress })
	return out
}

func (s *FileStore) writeLocked() error {
	if err := ensureDir(s.path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.sortedLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoints: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
