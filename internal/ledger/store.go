// Package ledger holds the persistent asset maps: the id counter, asset
// records, ownership, parentage, sale listings and the schema version.
//
// The store exposes per-map primitives only. Cross-map invariants
// (an owner exists for every asset, listings require an owner, ...)
// are enforced by the command processor.
package ledger

import (
	"encoding/binary"
	"fmt"

	"Pedigree/internal/storage"
)

// Key prefixes for storage.
var (
	prefixAsset   = []byte("a:") // a:<id BE> -> asset record
	prefixOwner   = []byte("o:") // o:<id BE> -> account
	prefixParents = []byte("p:") // p:<id BE> -> parents
	prefixListing = []byte("l:") // l:<id BE> -> empty
	keyNextID     = []byte("m:next")
	keySchema     = []byte("m:schema")
)

// Store reads and writes the ledger maps through a storage view.
type Store struct {
	kv storage.KV
}

// NewStore creates a store over the given view (database or batch).
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// NextID returns the next id to allocate. Zero when never written.
func (s *Store) NextID() (AssetID, error) {
	data, err := s.kv.Get(keyNextID)
	if err != nil {
		return 0, fmt.Errorf("read next id:\n%w", err)
	}

	if data == nil {
		return 0, nil
	}

	if len(data) != 4 {
		return 0, fmt.Errorf("invalid next id length: %d", len(data))
	}

	return AssetID(binary.LittleEndian.Uint32(data)), nil
}

// SetNextID overwrites the id counter.
func (s *Store) SetNextID(id AssetID) error {
	return s.kv.Set(keyNextID, binary.LittleEndian.AppendUint32(nil, uint32(id)))
}

// Asset returns the record for id.
func (s *Store) Asset(id AssetID) (Asset, bool, error) {
	data, err := s.kv.Get(makeKey(prefixAsset, id))
	if err != nil {
		return Asset{}, false, fmt.Errorf("read asset %d:\n%w", id, err)
	}

	if data == nil {
		return Asset{}, false, nil
	}

	a, err := DecodeAsset(data)
	if err != nil {
		return Asset{}, false, fmt.Errorf("decode asset %d:\n%w", id, err)
	}

	return a, true, nil
}

// HasAsset reports whether a record exists for id.
func (s *Store) HasAsset(id AssetID) (bool, error) {
	return s.kv.Has(makeKey(prefixAsset, id))
}

// PutAsset writes the record for id in the current layout.
func (s *Store) PutAsset(id AssetID, a Asset) error {
	return s.kv.Set(makeKey(prefixAsset, id), EncodeAsset(a))
}

// PutRawAsset writes an already-encoded record.
func (s *Store) PutRawAsset(id AssetID, data []byte) error {
	return s.kv.Set(makeKey(prefixAsset, id), data)
}

// RawAssets visits every stored record in id order without decoding it.
// The record bytes are only valid for the duration of the callback.
func (s *Store) RawAssets(fn func(id AssetID, data []byte) error) error {
	return s.kv.IteratePrefix(prefixAsset, func(key, value []byte) error {
		id, err := parseKey(prefixAsset, key)
		if err != nil {
			return err
		}

		return fn(id, value)
	})
}

// Assets visits every stored record in id order, decoded in the current layout.
func (s *Store) Assets(fn func(id AssetID, a Asset) error) error {
	return s.RawAssets(func(id AssetID, data []byte) error {
		a, err := DecodeAsset(data)
		if err != nil {
			return fmt.Errorf("decode asset %d:\n%w", id, err)
		}

		return fn(id, a)
	})
}

// Owner returns the owner of id.
func (s *Store) Owner(id AssetID) (AccountID, bool, error) {
	var owner AccountID

	data, err := s.kv.Get(makeKey(prefixOwner, id))
	if err != nil {
		return owner, false, fmt.Errorf("read owner %d:\n%w", id, err)
	}

	if data == nil {
		return owner, false, nil
	}

	if len(data) != AccountSize {
		return owner, false, fmt.Errorf("invalid owner length for %d: %d", id, len(data))
	}

	copy(owner[:], data)

	return owner, true, nil
}

// PutOwner overwrites the owner of id.
func (s *Store) PutOwner(id AssetID, owner AccountID) error {
	return s.kv.Set(makeKey(prefixOwner, id), owner[:])
}

// Parents returns the breeding parents of id, if it was bred.
func (s *Store) Parents(id AssetID) (Parents, bool, error) {
	data, err := s.kv.Get(makeKey(prefixParents, id))
	if err != nil {
		return Parents{}, false, fmt.Errorf("read parents %d:\n%w", id, err)
	}

	if data == nil {
		return Parents{}, false, nil
	}

	p, err := decodeParents(data)
	if err != nil {
		return Parents{}, false, fmt.Errorf("decode parents %d:\n%w", id, err)
	}

	return p, true, nil
}

// PutParents writes the parentage entry for id.
func (s *Store) PutParents(id AssetID, p Parents) error {
	return s.kv.Set(makeKey(prefixParents, id), encodeParents(p))
}

// IsListed reports whether id carries a sale listing.
func (s *Store) IsListed(id AssetID) (bool, error) {
	return s.kv.Has(makeKey(prefixListing, id))
}

// SetListed marks id as for sale.
func (s *Store) SetListed(id AssetID) error {
	return s.kv.Set(makeKey(prefixListing, id), []byte{})
}

// ClearListing removes the sale listing of id.
func (s *Store) ClearListing(id AssetID) error {
	return s.kv.Delete(makeKey(prefixListing, id))
}

// Listings visits every listed id in order.
func (s *Store) Listings(fn func(id AssetID) error) error {
	return s.kv.IteratePrefix(prefixListing, func(key, _ []byte) error {
		id, err := parseKey(prefixListing, key)
		if err != nil {
			return err
		}

		return fn(id)
	})
}

// SchemaVersion returns the recorded on-disk schema version. Zero when never written.
func (s *Store) SchemaVersion() (uint16, error) {
	data, err := s.kv.Get(keySchema)
	if err != nil {
		return 0, fmt.Errorf("read schema version:\n%w", err)
	}

	if data == nil {
		return 0, nil
	}

	if len(data) != 2 {
		return 0, fmt.Errorf("invalid schema version length: %d", len(data))
	}

	return binary.LittleEndian.Uint16(data), nil
}

// SetSchemaVersion records the on-disk schema version.
func (s *Store) SetSchemaVersion(v uint16) error {
	return s.kv.Set(keySchema, binary.LittleEndian.AppendUint16(nil, v))
}

// makeKey builds a map key: prefix + big-endian id, so iteration follows id order.
func makeKey(prefix []byte, id AssetID) []byte {
	key := make([]byte, len(prefix)+4)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], uint32(id))

	return key
}

// parseKey extracts the id from a map key.
func parseKey(prefix, key []byte) (AssetID, error) {
	if len(key) != len(prefix)+4 {
		return 0, fmt.Errorf("invalid key length %d under prefix %q", len(key), prefix)
	}

	return AssetID(binary.BigEndian.Uint32(key[len(prefix):])), nil
}
