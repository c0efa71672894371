// Package store persists the ledger snapshot in a bbolt database. One bucket,
// one key: the app commits a whole snapshot per block, so a KV page store is
// all the durability this node needs.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"onchainlottery/internal/state"
)

var (
	bucketState = []byte("state")
	keySnapshot = []byte("snapshot")
)

type Store struct {
	db *bolt.DB
}

// Open creates (or reopens) the state database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir store dir: %w", err)
	}
	path := filepath.Join(dir, "state.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadState returns the persisted snapshot, or a fresh state when none exists.
func (s *Store) LoadState() (*state.State, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return nil
		}
		if v := b.Get(keySnapshot); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if raw == nil {
		return state.NewState(), nil
	}
	return state.Decode(raw)
}

// SaveState overwrites the persisted snapshot.
func (s *Store) SaveState(st *state.State) error {
	raw, err := st.Encode()
	if err != nil {
		return err
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketState)
		if err != nil {
			return err
		}
		return b.Put(keySnapshot, raw)
	}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
