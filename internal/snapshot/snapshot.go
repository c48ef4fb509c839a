// Package snapshot exports the full ledger database to a checksummed,
// zstd-compressed byte string and applies it back to an empty database.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"Pedigree/internal/codec"
	"Pedigree/internal/storage"
)

// formatVersion is the current snapshot format version.
const formatVersion = 1

var (
	// ErrChecksum is returned when a snapshot's checksum does not match its content.
	ErrChecksum = errors.New("snapshot checksum mismatch")

	// ErrNotEmpty is returned when applying a snapshot to a database holding data.
	ErrNotEmpty = errors.New("database not empty")
)

// entry is one stored key/value pair.
type entry struct {
	key   []byte
	value []byte
}

// Snapshot is a decoded snapshot.
type Snapshot struct {
	Version  uint32   // Version is the snapshot format version
	Height   uint64   // Height is the last executed block at export time
	Entries  int      // Entries is the number of key/value pairs
	Checksum [32]byte // Checksum covers version, height and every entry

	entries []entry
}

// Create exports every key of db. Pebble iterates in key order, so the
// output is deterministic for a given state.
func Create(db *storage.Storage, height uint64) ([]byte, error) {
	var entries []entry

	err := db.Iterate(func(key, value []byte) error {
		entries = append(entries, entry{
			key:   append([]byte(nil), key...),
			value: append([]byte(nil), value...),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect entries:\n%w", err)
	}

	checksum := computeChecksum(formatVersion, height, entries)

	enc := codec.NewEncoder(1024).
		U32(formatVersion).
		U64(height).
		U32(uint32(len(entries)))

	for _, e := range entries {
		enc.Bytes(e.key).Bytes(e.value)
	}

	return enc.Fixed(checksum[:]).Finish(), nil
}

// Decode parses a snapshot and verifies its checksum.
func Decode(data []byte) (*Snapshot, error) {
	d := codec.NewDecoder(data)

	s := &Snapshot{
		Version: d.U32(),
		Height:  d.U64(),
	}

	if d.Err() == nil && s.Version != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	count := d.U32()
	for i := uint32(0); i < count && d.Err() == nil; i++ {
		s.entries = append(s.entries, entry{key: d.Bytes(), value: d.Bytes()})
	}

	d.Fixed(s.Checksum[:])

	if err := d.Finish(); err != nil {
		return nil, fmt.Errorf("decode snapshot:\n%w", err)
	}

	if computeChecksum(s.Version, s.Height, s.entries) != s.Checksum {
		return nil, ErrChecksum
	}

	s.Entries = len(s.entries)

	return s, nil
}

// Apply verifies data and writes every entry to db in one batch.
// db must be empty.
func Apply(db *storage.Storage, data []byte) (*Snapshot, error) {
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}

	empty := true
	err = db.Iterate(func(_, _ []byte) error {
		empty = false
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}

	if !empty {
		return nil, ErrNotEmpty
	}

	pairs := make([]storage.KeyValue, len(s.entries))
	for i, e := range s.entries {
		pairs[i] = storage.KeyValue{Key: e.key, Value: e.value}
	}

	if err := db.SetBatch(pairs); err != nil {
		return nil, fmt.Errorf("write entries:\n%w", err)
	}

	return s, nil
}

// errStop ends an iteration early.
var errStop = errors.New("stop")

// computeChecksum computes a blake3 checksum over canonical snapshot data.
// Format: version (4 bytes) + height (8 bytes) + for each entry: len + key + len + value
func computeChecksum(version uint32, height uint64, entries []entry) [32]byte {
	hasher := blake3.New()

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], version)
	hasher.Write(buf[:4])

	binary.BigEndian.PutUint64(buf[:], height)
	hasher.Write(buf[:])

	for _, e := range entries {
		binary.BigEndian.PutUint32(buf[:4], uint32(len(e.key)))
		hasher.Write(buf[:4])
		hasher.Write(e.key)

		binary.BigEndian.PutUint32(buf[:4], uint32(len(e.value)))
		hasher.Write(buf[:4])
		hasher.Write(e.value)
	}

	var checksum [32]byte
	hasher.Sum(checksum[:0])

	return checksum
}

// Compress compresses snapshot data using zstd.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd-compressed snapshot data.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// WriteFile exports db, compresses it and writes it to path.
func WriteFile(path string, db *storage.Storage, height uint64) error {
	data, err := Create(db, height)
	if err != nil {
		return err
	}

	compressed, err := Compress(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, compressed, 0600); err != nil {
		return fmt.Errorf("write snapshot %s:\n%w", path, err)
	}

	return nil
}

// ReadFile reads and decompresses a snapshot written by WriteFile.
func ReadFile(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s:\n%w", path, err)
	}

	return Decompress(compressed)
}
