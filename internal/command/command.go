// Package command defines the commands accepted by the ledger: their origin,
// call arguments, signing bytes and JSON wire form.
package command

import (
	"crypto/ed25519"
	"fmt"

	"github.com/zeebo/blake3"

	"Pedigree/internal/codec"
	"Pedigree/internal/keys"
	"Pedigree/internal/ledger"
)

// Kind identifies the operation a call performs.
type Kind uint8

const (
	KindCreate Kind = iota + 1
	KindBreed
	KindTransfer
	KindList
	KindPurchase
	KindSubmitOraclePayload
)

var kindNames = map[Kind]string{
	KindCreate:              "create",
	KindBreed:               "breed",
	KindTransfer:            "transfer",
	KindList:                "list",
	KindPurchase:            "purchase",
	KindSubmitOraclePayload: "submit_oracle_payload",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a wire name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown call kind %q", s)
}

// OriginKind tags who a command comes from.
type OriginKind uint8

const (
	// OriginNone is an unsigned command, admitted only through the unsigned validator.
	OriginNone OriginKind = iota

	// OriginSigned is a command signed by an account.
	OriginSigned
)

// Origin is the tagged origin of a command. Account is only meaningful when signed.
type Origin struct {
	Kind    OriginKind
	Account ledger.AccountID
}

// Signed returns a signed origin for account.
func Signed(account ledger.AccountID) Origin {
	return Origin{Kind: OriginSigned, Account: account}
}

// None returns the unsigned origin.
func None() Origin {
	return Origin{Kind: OriginNone}
}

// Call is the operation and its arguments. Unused fields are zero.
type Call struct {
	Kind      Kind
	Label     ledger.Label     // Label for create and breed
	ID        ledger.AssetID   // ID for transfer, list and purchase
	ParentA   ledger.AssetID   // ParentA for breed
	ParentB   ledger.AssetID   // ParentB for breed
	Recipient ledger.AccountID // Recipient for transfer

	Payload          *OraclePayload // Payload for submit_oracle_payload
	PayloadSignature []byte         // PayloadSignature is the BLS signature over Payload
}

// Create builds a create call.
func Create(label ledger.Label) Call {
	return Call{Kind: KindCreate, Label: label}
}

// Breed builds a breed call.
func Breed(a, b ledger.AssetID, label ledger.Label) Call {
	return Call{Kind: KindBreed, ParentA: a, ParentB: b, Label: label}
}

// Transfer builds a transfer call.
func Transfer(recipient ledger.AccountID, id ledger.AssetID) Call {
	return Call{Kind: KindTransfer, Recipient: recipient, ID: id}
}

// List builds a list call.
func List(id ledger.AssetID) Call {
	return Call{Kind: KindList, ID: id}
}

// Purchase builds a purchase call.
func Purchase(id ledger.AssetID) Call {
	return Call{Kind: KindPurchase, ID: id}
}

// SubmitOraclePayload builds the unsigned oracle call.
func SubmitOraclePayload(p OraclePayload, signature []byte) Call {
	return Call{Kind: KindSubmitOraclePayload, Payload: &p, PayloadSignature: signature}
}

// Encode returns the canonical binary form of the call.
func (c Call) Encode() []byte {
	enc := codec.NewEncoder(64).U8(uint8(c.Kind))

	switch c.Kind {
	case KindCreate:
		enc.Fixed(c.Label[:])
	case KindBreed:
		enc.U32(uint32(c.ParentA)).U32(uint32(c.ParentB)).Fixed(c.Label[:])
	case KindTransfer:
		enc.Fixed(c.Recipient[:]).U32(uint32(c.ID))
	case KindList, KindPurchase:
		enc.U32(uint32(c.ID))
	case KindSubmitOraclePayload:
		if c.Payload != nil {
			enc.Fixed(c.Payload.SigningBytes())
		}
		enc.Bytes(c.PayloadSignature)
	}

	return enc.Finish()
}

// Command is a call with its origin and, for signed commands, the nonce and
// ed25519 signature of the sender.
type Command struct {
	Origin    Origin
	Nonce     uint64
	Call      Call
	Signature []byte
}

// NewUnsigned wraps a call as an unsigned command.
func NewUnsigned(call Call) Command {
	return Command{Origin: None(), Call: call}
}

// NewSigned builds and signs a command for the key's account.
func NewSigned(priv ed25519.PrivateKey, nonce uint64, call Call) Command {
	cmd := Command{
		Origin: Signed(keys.AccountOf(priv)),
		Nonce:  nonce,
		Call:   call,
	}

	digest := cmd.SigningHash()
	cmd.Signature = ed25519.Sign(priv, digest[:])

	return cmd
}

// SigningBytes returns the bytes covered by the sender signature:
// origin tag, account, nonce and encoded call.
func (c Command) SigningBytes() []byte {
	return codec.NewEncoder(128).
		U8(uint8(c.Origin.Kind)).
		Fixed(c.Origin.Account[:]).
		U64(c.Nonce).
		Bytes(c.Call.Encode()).
		Finish()
}

// SigningHash returns blake3 of the signing bytes.
func (c Command) SigningHash() [32]byte {
	return blake3.Sum256(c.SigningBytes())
}

// Hash identifies the command, signature included.
func (c Command) Hash() [32]byte {
	h := blake3.New()
	h.Write(c.SigningBytes())
	h.Write(c.Signature)

	var out [32]byte
	h.Sum(out[:0])

	return out
}

// VerifySignature checks the sender signature of a signed command.
// Unsigned commands carry no sender signature and always fail.
func (c Command) VerifySignature() bool {
	if c.Origin.Kind != OriginSigned {
		return false
	}

	digest := c.SigningHash()
	return keys.VerifyAccount(c.Origin.Account, digest[:], c.Signature)
}
