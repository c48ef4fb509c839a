// Package dna derives the fixed-size attribute of new assets.
package dna

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"Pedigree/internal/ledger"
)

// Derive computes the attribute for a new asset from the block randomness
// seed, the caller and the caller's command index within the block.
// It is a pure function of its inputs; randomness comes from the seed.
//
// Layout hashed: seed (32) || caller (32) || seq (u32 LE), truncated to 16 bytes.
func Derive(seed [32]byte, caller ledger.AccountID, seq uint32) ledger.DNA {
	h := blake3.New()
	h.Write(seed[:])
	h.Write(caller[:])

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], seq)
	h.Write(buf[:])

	var sum [32]byte
	h.Sum(sum[:0])

	var out ledger.DNA
	copy(out[:], sum[:ledger.DNASize])

	return out
}

// Mix combines two parent attributes bit by bit: where selector has a 1
// the bit comes from a, otherwise from b.
func Mix(a, b, selector ledger.DNA) ledger.DNA {
	var out ledger.DNA

	for i := range out {
		out[i] = (a[i] & selector[i]) | (b[i] &^ selector[i])
	}

	return out
}
