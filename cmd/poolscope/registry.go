package main

import (
	"context"
	"fmt"

	"poolScope/internal/config"
	"poolScope/internal/storage"
	"poolScope/internal/storage/postgres"
)

type registryHandle struct {
	registry storage.Registry
	// pg is set for the postgres backend so the checkpoint can share the pool.
	pg      *postgres.Store
	closeFn func()
}

func (h *registryHandle) Close() {
	if h != nil && h.closeFn != nil {
		h.closeFn()
	}
}

func openRegistry(ctx context.Context, cfg config.RegistryConfig) (*registryHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return &registryHandle{registry: storage.NewMemoryRegistry()}, nil
	case config.BackendJsonl:
		return &registryHandle{registry: storage.NewJsonlRegistry(cfg.Path)}, nil
	case config.BackendBolt:
		reg, err := storage.NewBoltRegistry(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open bolt registry: %w", err)
		}
		return &registryHandle{registry: reg, closeFn: func() { _ = reg.Close() }}, nil
	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return &registryHandle{registry: store, pg: store, closeFn: store.Close}, nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}
