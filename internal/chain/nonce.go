package chain

import (
	"encoding/binary"
	"fmt"

	"Pedigree/internal/ledger"
	"Pedigree/internal/storage"
)

// Chain metadata and account nonce keys.
var (
	prefixNonce = []byte("n:") // n:<account> -> u64 LE
	keyHeight   = []byte("c:height")
	keySeed     = []byte("c:seed")
)

// readNonce returns the next expected nonce of acct.
func readNonce(kv storage.Reader, acct ledger.AccountID) (uint64, error) {
	data, err := kv.Get(nonceKey(acct))
	if err != nil {
		return 0, fmt.Errorf("read nonce %s:\n%w", acct.Short(), err)
	}

	if data == nil {
		return 0, nil
	}

	if len(data) != 8 {
		return 0, fmt.Errorf("invalid nonce length for %s: %d", acct.Short(), len(data))
	}

	return binary.LittleEndian.Uint64(data), nil
}

// writeNonce stores the next expected nonce of acct.
func writeNonce(kv storage.KV, acct ledger.AccountID, nonce uint64) error {
	return kv.Set(nonceKey(acct), binary.LittleEndian.AppendUint64(nil, nonce))
}

// nonceKey builds the storage key for an account nonce.
func nonceKey(acct ledger.AccountID) []byte {
	key := make([]byte, len(prefixNonce)+ledger.AccountSize)
	copy(key, prefixNonce)
	copy(key[len(prefixNonce):], acct[:])

	return key
}
