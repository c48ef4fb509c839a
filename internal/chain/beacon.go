package chain

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Randomness supplies the per-block seed.
type Randomness interface {
	Seed(parent [32]byte, height uint64) [32]byte
}

// BLSSigner signs with the block producer's key.
type BLSSigner interface {
	Sign(message []byte) []byte
}

// SignatureBeacon derives each seed from a BLS signature by the producer over
// the previous seed and the height. BLS signatures are deterministic, so the
// seed is fixed for a given producer key, yet nobody without the key can
// compute it ahead of the block.
type SignatureBeacon struct {
	signer BLSSigner
}

// NewSignatureBeacon creates a beacon signing with signer.
func NewSignatureBeacon(signer BLSSigner) *SignatureBeacon {
	return &SignatureBeacon{signer: signer}
}

// Seed returns blake3(sign(parent || height LE)).
func (b *SignatureBeacon) Seed(parent [32]byte, height uint64) [32]byte {
	msg := make([]byte, 0, 40)
	msg = append(msg, parent[:]...)
	msg = binary.LittleEndian.AppendUint64(msg, height)

	return blake3.Sum256(b.signer.Sign(msg))
}
