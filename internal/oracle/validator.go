package oracle

import (
	"fmt"

	"Pedigree/internal/command"
	"Pedigree/internal/keys"
	"Pedigree/internal/pool"
	"Pedigree/internal/processor"
)

const (
	// ProvidesTag is the provenance tag granted to accepted payloads.
	ProvidesTag = "pedigree-oracle/submit_oracle_payload"

	// UnsignedPriority is the block priority of accepted payloads.
	UnsignedPriority = 100

	// UnsignedLongevity is the number of blocks an accepted payload stays valid.
	UnsignedLongevity = 3
)

// Validator admits oracle payloads on the unsigned path.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate accepts only submit_oracle_payload with a payload signature that
// verifies against the embedded public key.
func (v *Validator) Validate(cmd command.Command, _ uint64) (pool.Validity, error) {
	if cmd.Origin.Kind != command.OriginNone || cmd.Call.Kind != command.KindSubmitOraclePayload {
		return pool.Validity{}, fmt.Errorf("%w: %s", processor.ErrUnauthorizedCall, cmd.Call.Kind)
	}

	payload := cmd.Call.Payload
	if payload == nil || !keys.Verify(cmd.Call.PayloadSignature, payload.SigningBytes(), payload.Public) {
		return pool.Validity{}, processor.ErrBadSignature
	}

	return pool.Validity{
		Tag:       ProvidesTag,
		Priority:  UnsignedPriority,
		Longevity: UnsignedLongevity,
		Propagate: true,
	}, nil
}
