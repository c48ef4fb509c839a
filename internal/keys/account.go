package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"Pedigree/internal/ledger"
)

// LoadOrGenerate loads an ed25519 private key from path, generating and saving
// a new one when the file does not exist. An empty path yields an ephemeral key.
func LoadOrGenerate(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return Generate()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return generateAndSave(path)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// Generate creates a new ed25519 private key.
func Generate() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSave creates a new key and saves it to the given path.
func generateAndSave(path string) (ed25519.PrivateKey, error) {
	priv, err := Generate()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}

// AccountOf returns the account identified by the key's public half.
func AccountOf(priv ed25519.PrivateKey) ledger.AccountID {
	var a ledger.AccountID
	copy(a[:], priv.Public().(ed25519.PublicKey))
	return a
}

// VerifyAccount checks an ed25519 signature made by account over message.
func VerifyAccount(account ledger.AccountID, message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(account[:]), message, signature)
}
