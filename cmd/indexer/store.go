package main

import (
	"context"
	"fmt"

	"theragraph/internal/config"
	"theragraph/internal/storage"
	"theragraph/internal/storage/postgres"
	"theragraph/internal/storage/sqlite"
)

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.CheckpointStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres %s: %w", config.MaskURL(cfg.PGDSN), err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return store, nil
	default:
		store, err := storage.OpenFileStore(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint file %s: %w", cfg.File, err)
		}
		return store, nil
	}
}
