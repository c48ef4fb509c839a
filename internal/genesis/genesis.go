// Package genesis builds the initial ledger state: endowed balances and
// the seed the first block derives its randomness from.
package genesis

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"

	"github.com/zeebo/blake3"

	"Pedigree/internal/currency"
	"Pedigree/internal/ledger"
	"Pedigree/internal/storage"
)

// DefaultChainID seeds the genesis randomness when none is configured.
const DefaultChainID = "pedigree-genesis"

// Config holds the genesis configuration.
type Config struct {
	// ChainID is hashed into the genesis seed.
	ChainID string `json:"chainId"`

	// Endowments are balances minted once at genesis.
	Endowments map[ledger.AccountID]uint64 `json:"endowments"`
}

// Load reads a JSON genesis file.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read genesis file:\n%w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse genesis file:\n%w", err)
	}

	return cfg, nil
}

// Merge adds endowments from extra, overriding amounts for repeated accounts.
func (c *Config) Merge(extra map[ledger.AccountID]uint64) {
	if len(extra) == 0 {
		return
	}

	if c.Endowments == nil {
		c.Endowments = make(map[ledger.AccountID]uint64, len(extra))
	}

	maps.Copy(c.Endowments, extra)
}

// Seed returns the genesis randomness seed.
func (c Config) Seed() [32]byte {
	id := c.ChainID
	if id == "" {
		id = DefaultChainID
	}

	return blake3.Sum256([]byte(id))
}

// Apply mints the endowments into kv and returns the genesis seed.
// The caller commits kv; nothing is written on error.
func Apply(kv storage.KV, cfg Config, existentialDeposit uint64) ([32]byte, error) {
	balances := currency.NewBalances(kv, existentialDeposit)

	for acct, amount := range cfg.Endowments {
		if err := balances.Mint(acct, amount); err != nil {
			return [32]byte{}, fmt.Errorf("endow %s:\n%w", acct.Short(), err)
		}
	}

	return cfg.Seed(), nil
}
