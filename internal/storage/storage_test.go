package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"poolScope/internal/model"
)

func appendAll(t *testing.T, r Registry, entries []model.RegistryEntry) {
	t.Helper()
	for _, entry := range entries {
		if err := r.Append(context.Background(), entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func sampleEntries() []model.RegistryEntry {
	return []model.RegistryEntry{
		{Address: "CPOOLA", Ledger: 10, EventID: "0000000042949677056-0000000001"},
		{Address: "CPOOLB", Ledger: 11},
		{Address: "CPOOLA", Ledger: 12},
	}
}

func TestRegistriesKeepAppendOrderAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	bolt, err := NewBoltRegistry(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	defer bolt.Close()

	registries := map[string]Registry{
		"memory": NewMemoryRegistry(),
		"jsonl":  NewJsonlRegistry(filepath.Join(dir, "nested", "registry.jsonl")),
		"bolt":   bolt,
	}

	for name, registry := range registries {
		t.Run(name, func(t *testing.T) {
			want := sampleEntries()
			appendAll(t, registry, want)

			got, err := registry.ListAll(context.Background())
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("entries mismatch: %+v != %+v", got, want)
			}
		})
	}
}

func TestEmptyRegistries(t *testing.T) {
	got, err := NewJsonlRegistry(filepath.Join(t.TempDir(), "missing.jsonl")).ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty registry, got %d", len(got))
	}

	got, err = NewMemoryRegistry().ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty registry, got %d", len(got))
	}
}

func TestMemoryRegistrySnapshotIsDetached(t *testing.T) {
	registry := NewMemoryRegistry()
	appendAll(t, registry, sampleEntries()[:1])

	snapshot, _ := registry.ListAll(context.Background())
	appendAll(t, registry, sampleEntries()[1:])

	if len(snapshot) != 1 {
		t.Fatalf("snapshot changed after append: %d entries", len(snapshot))
	}
}

func TestBoltRegistryReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	first, err := NewBoltRegistry(path)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	appendAll(t, first, sampleEntries())
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewBoltRegistry(path)
	if err != nil {
		t.Fatalf("reopen bolt: %v", err)
	}
	defer second.Close()
	appendAll(t, second, []model.RegistryEntry{{Address: "CPOOLC"}})

	got, err := second.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 4 || got[3].Address != "CPOOLC" {
		t.Fatalf("unexpected entries after reopen: %+v", got)
	}
}

func TestBoltRegistryAppendBatch(t *testing.T) {
	reg, err := NewBoltRegistry(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	defer reg.Close()

	var _ BatchAppender = reg

	appendAll(t, reg, []model.RegistryEntry{{Address: "CFIRST"}})
	if err := reg.AppendBatch(context.Background(), sampleEntries()); err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if err := reg.AppendBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	got, err := reg.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := append([]model.RegistryEntry{{Address: "CFIRST"}}, sampleEntries()...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entries = %+v, want %+v", got, want)
	}
}
