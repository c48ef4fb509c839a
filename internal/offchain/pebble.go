package offchain

import (
	"context"
	"fmt"

	"Pedigree/internal/storage"
)

// PebbleStore keeps notes in a node-local pebble database, separate from
// the ledger database so snapshots never include them.
type PebbleStore struct {
	db *storage.Storage
}

// OpenPebble opens (or creates) a note store in dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := storage.New(dir)
	if err != nil {
		return nil, fmt.Errorf("open note store:\n%w", err)
	}

	return &PebbleStore{db: db}, nil
}

// Set stores a note.
func (s *PebbleStore) Set(_ context.Context, key, value []byte) error {
	return s.db.Set(key, value)
}

// Get reads a note.
func (s *PebbleStore) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key)
	if err != nil {
		return nil, false, err
	}

	return value, value != nil, nil
}

// Close closes the underlying database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}
