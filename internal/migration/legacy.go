package migration

import (
	"fmt"

	"Pedigree/internal/codec"
	"Pedigree/internal/ledger"
)

const (
	// v0 records hold the attribute only.
	v0RecordSize = ledger.DNASize

	// v1 records hold the attribute and a short label.
	v1LabelSize  = 4
	v1RecordSize = ledger.DNASize + v1LabelSize
)

// decoder reads a record written under one historical layout and returns it
// in the current form.
type decoder func(data []byte) (ledger.Asset, error)

// decoders holds one entry per historical version.
var decoders = map[uint16]decoder{
	0: decodeV0,
	1: decodeV1,
}

// decoderFor returns the decoder for a stored version.
func decoderFor(version uint16) (decoder, error) {
	d, ok := decoders[version]
	if !ok {
		return nil, fmt.Errorf("no decoder for schema version %d", version)
	}
	return d, nil
}

// decodeV0 reads dna16. The label is backfilled with PlaceholderLabel.
func decodeV0(data []byte) (ledger.Asset, error) {
	if len(data) != v0RecordSize {
		return ledger.Asset{}, fmt.Errorf("invalid v0 record size: got %d, want %d", len(data), v0RecordSize)
	}

	a := ledger.Asset{Label: PlaceholderLabel}

	d := codec.NewDecoder(data)
	d.Fixed(a.DNA[:])

	return a, d.Finish()
}

// decodeV1 reads dna16 || label4. The short label is repeated to fill the current width.
func decodeV1(data []byte) (ledger.Asset, error) {
	if len(data) != v1RecordSize {
		return ledger.Asset{}, fmt.Errorf("invalid v1 record size: got %d, want %d", len(data), v1RecordSize)
	}

	var (
		a     ledger.Asset
		short [v1LabelSize]byte
	)

	d := codec.NewDecoder(data)
	d.Fixed(a.DNA[:])
	d.Fixed(short[:])

	copy(a.Label[:v1LabelSize], short[:])
	copy(a.Label[v1LabelSize:], short[:])

	return a, d.Finish()
}
