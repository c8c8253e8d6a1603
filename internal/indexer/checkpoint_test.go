package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileCheckpointStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint.json")
	store := NewFileCheckpointStore(path)

	if _, ok, err := store.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected empty checkpoint, got ok=%v err=%v", ok, err)
	}

	if err := store.Save(context.Background(), 123); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(context.Background(), 456); err != nil {
		t.Fatalf("save: %v", err)
	}

	last, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if last != 456 {
		t.Fatalf("expected 456, got %d", last)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestFileCheckpointStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := NewFileCheckpointStore(path).Load(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDBCheckpointStoreNil(t *testing.T) {
	var store *DBCheckpointStore
	if _, ok, err := store.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected no-op load, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(context.Background(), 1); err != nil {
		t.Fatalf("expected no-op save, got %v", err)
	}
}
