// Package offchain stores node-local notes that cross from block execution
// to the background oracle task. Notes are not consensus state.
package offchain

import (
	"context"
	"encoding/binary"

	"Pedigree/internal/codec"
	"Pedigree/internal/ledger"
)

// Namespace prefixes every note key.
const Namespace = "ocw-kitties::storage::tx"

// OpSubmitName tags a note written by create.
const OpSubmitName = "submit_name"

// Store is a node-local key/value store for notes.
type Store interface {
	Set(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Close() error
}

// NoteKey returns the note key for a block height: namespace + "/" + u32 LE height.
func NoteKey(height uint64) []byte {
	key := make([]byte, 0, len(Namespace)+1+4)
	key = append(key, Namespace...)
	key = append(key, '/')

	return binary.LittleEndian.AppendUint32(key, uint32(height))
}

// IndexingNote records the label of an asset created in a block.
type IndexingNote struct {
	Op    string
	Label ledger.Label
}

// Encode returns the stored form: u32-prefixed op followed by the raw label.
func (n IndexingNote) Encode() []byte {
	return codec.NewEncoder(4 + len(n.Op) + ledger.LabelSize).
		Bytes([]byte(n.Op)).
		Fixed(n.Label[:]).
		Finish()
}

// DecodeIndexingNote parses a stored note.
func DecodeIndexingNote(data []byte) (IndexingNote, error) {
	var n IndexingNote

	d := codec.NewDecoder(data)
	n.Op = string(d.Bytes())
	d.Fixed(n.Label[:])

	return n, d.Finish()
}
