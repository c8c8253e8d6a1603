package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"poolScope/internal/storage/postgres"
)

// CheckpointStore persists the last fully processed ledger.
type CheckpointStore interface {
	Load(ctx context.Context) (uint32, bool, error)
	Save(ctx context.Context, ledger uint32) error
}

// Checkpoint is the on-disk checkpoint record.
type Checkpoint struct {
	LastProcessedLedger uint32 `json:"last_processed_ledger"`
	UpdatedAt           string `json:"updated_at"`
}

// FileCheckpointStore persists checkpoints to a JSON file.
type FileCheckpointStore struct {
	path string
}

func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path: path}
}

func (c *FileCheckpointStore) Load(_ context.Context) (uint32, bool, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.LastProcessedLedger, true, nil
}

func (c *FileCheckpointStore) Save(_ context.Context, ledger uint32) error {
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		LastProcessedLedger: ledger,
		UpdatedAt:           time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// DBCheckpointStore stores the checkpoint in the indexer_state table.
type DBCheckpointStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBCheckpointStore) Load(ctx context.Context) (uint32, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBCheckpointStore) Save(ctx context.Context, ledger uint32) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, ledger)
}
