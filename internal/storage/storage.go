package storage

import (
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond
)

// Reader is the read side shared by the database and open batches.
type Reader interface {
	// Get returns the value for key, or nil if the key does not exist.
	Get(key []byte) ([]byte, error)
	// Has reports whether key exists, including keys holding an empty value.
	Has(key []byte) (bool, error)
	// IteratePrefix visits every pair under prefix in key order.
	IteratePrefix(prefix []byte, fn func(key, value []byte) error) error
}

// KV is a readable and writable key-value view.
// Both *Storage and *Batch implement it, so state stores can run
// directly against the database or inside an uncommitted batch.
type KV interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
}

// KeyValue represents a key-value pair for batch operations.
type KeyValue struct {
	Key   []byte // Key is the key to store
	Value []byte // Value is the value to store
}

// Storage provides a simple key-value store backed by Pebble.
// Writes are non-blocking (NoSync) and a background goroutine
// periodically syncs the WAL to disk for durability.
type Storage struct {
	db       *pebble.DB    // db is the underlying Pebble database
	stopSync chan struct{} // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
}

// New creates a new Storage instance at the given path.
// It starts a background goroutine that syncs the WAL periodically.
func New(path string) (*Storage, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20), // 32 MB cache
		MemTableSize:                16 << 20,                  // 16 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		db:       db,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop()

	return s, nil
}

// Get retrieves the value for the given key.
// Returns nil if the key does not exist. An existing empty value
// is returned as a non-nil empty slice.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)

	return copyValue(value, closer, err)
}

// Has reports whether the key exists.
func (s *Storage) Has(key []byte) (bool, error) {
	value, err := s.Get(key)
	return value != nil, err
}

// Set stores a key-value pair.
// The write is buffered and synced periodically by the background goroutine.
func (s *Storage) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.NoSync)
}

// Delete removes a key from the store.
// The write is buffered and synced periodically by the background goroutine.
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key, pebble.NoSync)
}

// SetBatch atomically stores multiple key-value pairs.
// Either all pairs are written or none.
func (s *Storage) SetBatch(pairs []KeyValue) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, kv := range pairs {
		if err := batch.Set(kv.Key, kv.Value, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.NoSync)
}

// NewBatch opens an indexed batch. Reads through the batch observe its
// own pending writes on top of the committed database. Nothing reaches
// the database until Commit; Discard drops every pending write.
func (s *Storage) NewBatch() *Batch {
	return &Batch{b: s.db.NewIndexedBatch()}
}

// Iterate calls fn for each key-value pair in the database.
// If fn returns an error, iteration stops and the error is returned.
// Keys are visited in lexicographic order.
func (s *Storage) Iterate(fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}

	return walk(iter, fn)
}

// IteratePrefix calls fn for each key-value pair with the given prefix.
// Uses Pebble's iterator bounds for efficient prefix scanning.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}

	return walk(iter, fn)
}

// Close stops the sync goroutine and closes the database.
// It performs a final sync before closing to ensure durability.
func (s *Storage) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	// Final sync before closing
	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// Batch is an uncommitted, readable set of writes.
// A Batch is not safe for concurrent use.
type Batch struct {
	b    *pebble.Batch
	done bool
}

// Get reads the key through the batch.
func (b *Batch) Get(key []byte) ([]byte, error) {
	value, closer, err := b.b.Get(key)

	return copyValue(value, closer, err)
}

// Has reports whether the key exists in the batch view.
func (b *Batch) Has(key []byte) (bool, error) {
	value, err := b.Get(key)
	return value != nil, err
}

// Set records a pending write.
func (b *Batch) Set(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

// Delete records a pending deletion.
func (b *Batch) Delete(key []byte) error {
	return b.b.Delete(key, nil)
}

// IteratePrefix visits the merged view of the database and the batch.
func (b *Batch) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := b.b.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}

	return walk(iter, fn)
}

// Commit atomically applies every pending write and releases the batch.
func (b *Batch) Commit() error {
	if b.done {
		return nil
	}
	b.done = true

	if err := b.b.Commit(pebble.NoSync); err != nil {
		b.b.Close()
		return err
	}

	return b.b.Close()
}

// Discard drops every pending write. Safe to call after Commit.
func (b *Batch) Discard() {
	if b.done {
		return
	}
	b.done = true

	_ = b.b.Close()
}

// copyValue copies a pebble value out before its closer releases it.
func copyValue(value []byte, closer interface{ Close() error }, err error) ([]byte, error) {
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// walk drives an iterator to completion and closes it.
func walk(iter *pebble.Iterator, fn func(key, value []byte) error) error {
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(key, value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixOptions bounds an iterator to keys starting with prefix.
func prefixOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	}
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil // all 0xFF -> unbounded
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Storage) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
