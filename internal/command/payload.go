package command

import (
	"Pedigree/internal/codec"
)

// OraclePayload is the externally sourced quote a producer signs and submits.
type OraclePayload struct {
	Price  []byte // Price is the quoted price as received, e.g. "64000.10"
	Public []byte // Public is the compressed BLS public key of the signer
}

// SigningBytes returns the canonical encoding covered by the payload signature.
func (p OraclePayload) SigningBytes() []byte {
	return codec.NewEncoder(8 + len(p.Price) + len(p.Public)).
		Bytes(p.Price).
		Bytes(p.Public).
		Finish()
}
