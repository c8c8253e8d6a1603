package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"poolScope/internal/model"
)

var poolsBucket = []byte("pools")

// BoltRegistry stores registry entries in an embedded bbolt database, keyed
// by an increasing sequence so that iteration order equals append order.
type BoltRegistry struct {
	db *bolt.DB
}

func NewBoltRegistry(path string) (*BoltRegistry, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt registry: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(poolsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pools bucket: %w", err)
	}
	return &BoltRegistry{db: db}, nil
}

func (s *BoltRegistry) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltRegistry) Append(ctx context.Context, entry model.RegistryEntry) error {
	return s.AppendBatch(ctx, []model.RegistryEntry{entry})
}

// AppendBatch stores entries in a single bbolt transaction.
func (s *BoltRegistry) AppendBatch(_ context.Context, entries []model.RegistryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		value, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal registry entry: %w", err)
		}
		values = append(values, value)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(poolsBucket)
		for _, value := range values {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("next sequence: %w", err)
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := bucket.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltRegistry) ListAll(_ context.Context) ([]model.RegistryEntry, error) {
	var entries []model.RegistryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(poolsBucket).ForEach(func(k, v []byte) error {
			var entry model.RegistryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("parse registry entry %x: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
