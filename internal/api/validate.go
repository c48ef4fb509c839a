package api

import (
	"crypto/ed25519"
	"fmt"

	"Pedigree/internal/command"
)

// validateSigned checks a command for the signed path before it reaches the pool.
// Checks origin, signature size and the ed25519 signature.
func validateSigned(cmd command.Command) error {
	if cmd.Origin.Kind != command.OriginSigned {
		return fmt.Errorf("missing sender")
	}

	if cmd.Call.Kind == command.KindSubmitOraclePayload {
		return fmt.Errorf("%s is only accepted unsigned", cmd.Call.Kind)
	}

	if len(cmd.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: got %d, want %d", len(cmd.Signature), ed25519.SignatureSize)
	}

	if !cmd.VerifySignature() {
		return fmt.Errorf("invalid signature")
	}

	return nil
}
