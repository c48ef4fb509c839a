package ledger

import (
	"encoding/hex"
	"fmt"

	"Pedigree/internal/codec"
)

const (
	// DNASize is the size of the derived attribute in bytes.
	DNASize = 16

	// LabelSize is the size of the display label in bytes.
	LabelSize = 8

	// AccountSize is the size of an account identifier (ed25519 public key).
	AccountSize = 32

	// assetRecordSize is the size of an encoded current-version asset record.
	assetRecordSize = DNASize + LabelSize
)

// AssetID identifies an asset. Allocated once, never reused.
type AssetID uint32

// AccountID identifies an account by its 32-byte public key.
type AccountID [AccountSize]byte

// String returns the lowercase hex encoding of the account.
func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns the first 8 hex characters, for logs.
func (a AccountID) Short() string {
	return hex.EncodeToString(a[:4])
}

// MarshalText encodes the account as hex.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a hex account.
func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

// ParseAccountID decodes a 64-character hex account identifier.
func ParseAccountID(s string) (AccountID, error) {
	var a AccountID

	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode account hex:\n%w", err)
	}

	if len(b) != AccountSize {
		return a, fmt.Errorf("invalid account length: got %d, want %d", len(b), AccountSize)
	}

	copy(a[:], b)

	return a, nil
}

// DNA is the fixed-size derived attribute of an asset.
type DNA [DNASize]byte

// MarshalText encodes the attribute as hex.
func (d DNA) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(d[:])), nil
}

// UnmarshalText decodes a hex attribute.
func (d *DNA) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}

	if len(b) != DNASize {
		return fmt.Errorf("invalid dna length: got %d, want %d", len(b), DNASize)
	}

	copy(d[:], b)

	return nil
}

// Label is the fixed-size display label of an asset.
type Label [LabelSize]byte

// ParseLabel converts s into a label, zero-padding short input.
func ParseLabel(s string) (Label, error) {
	var l Label

	if len(s) > LabelSize {
		return l, fmt.Errorf("label too long: %d bytes, max %d", len(s), LabelSize)
	}

	copy(l[:], s)

	return l, nil
}

// String returns the label with trailing zero bytes trimmed.
func (l Label) String() string {
	n := len(l)
	for n > 0 && l[n-1] == 0 {
		n--
	}
	return string(l[:n])
}

// MarshalText encodes the trimmed label.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a label.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}

	*l = parsed

	return nil
}

// Asset is the immutable attribute payload of an asset.
type Asset struct {
	DNA   DNA   `json:"dna"`   // DNA is the derived attribute
	Label Label `json:"label"` // Label is the display label
}

// Parents holds the two breeding parents of a bred asset, in call order.
type Parents struct {
	A AssetID `json:"a"`
	B AssetID `json:"b"`
}

// EncodeAsset encodes an asset in the current on-disk layout: dna16 || label8.
func EncodeAsset(a Asset) []byte {
	return codec.NewEncoder(assetRecordSize).
		Fixed(a.DNA[:]).
		Fixed(a.Label[:]).
		Finish()
}

// DecodeAsset decodes a current-layout asset record.
// Records written under an older schema must go through the migration decoders.
func DecodeAsset(data []byte) (Asset, error) {
	var a Asset

	if len(data) != assetRecordSize {
		return a, fmt.Errorf("invalid asset record size: got %d, want %d", len(data), assetRecordSize)
	}

	d := codec.NewDecoder(data)
	d.Fixed(a.DNA[:])
	d.Fixed(a.Label[:])

	return a, d.Finish()
}

// encodeParents encodes parents as two little-endian u32 values.
func encodeParents(p Parents) []byte {
	return codec.NewEncoder(8).U32(uint32(p.A)).U32(uint32(p.B)).Finish()
}

// decodeParents decodes an encoded parents pair.
func decodeParents(data []byte) (Parents, error) {
	d := codec.NewDecoder(data)
	p := Parents{A: AssetID(d.U32()), B: AssetID(d.U32())}

	return p, d.Finish()
}
