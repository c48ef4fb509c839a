package main

import (
	"crypto/ed25519"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"Pedigree/internal/ledger"
	"Pedigree/internal/oracle"
	"Pedigree/internal/processor"
)

// Config holds the node configuration.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string

	// KeyPath is the path to the Ed25519 private key file.
	KeyPath string

	// PrivateKey is the node's Ed25519 signing key.
	PrivateKey ed25519.PrivateKey

	// BlockTime is the interval between produced blocks.
	BlockTime time.Duration

	// OracleURL is the price quote endpoint. Empty disables the oracle.
	OracleURL string

	// OracleTimeout bounds each quote fetch.
	OracleTimeout time.Duration

	// NotesRedis is the redis address for off-chain notes. Empty uses local pebble.
	NotesRedis string

	// PoolSize bounds the pending command pool.
	PoolSize int

	// ExistentialDeposit is the minimum balance a funded account keeps.
	ExistentialDeposit uint64

	// Backup writes a snapshot before running a schema migration.
	Backup bool

	// LogLevel is the minimum log level.
	LogLevel string

	// Params are the command processor parameters.
	Params processor.Params

	// GenesisPath is an optional JSON genesis file.
	GenesisPath string

	// Endowments are balances minted at genesis, on top of the genesis file.
	Endowments endowments
}

// endowments collects repeated -endow account=amount flags.
type endowments map[ledger.AccountID]uint64

// String implements flag.Value.
func (e endowments) String() string {
	parts := make([]string, 0, len(e))
	for acct, amount := range e {
		parts = append(parts, fmt.Sprintf("%s=%d", acct.Short(), amount))
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (e endowments) Set(v string) error {
	acctHex, amountStr, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected account=amount, got %q", v)
	}

	acct, err := ledger.ParseAccountID(acctHex)
	if err != nil {
		return err
	}

	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse amount:\n%w", err)
	}

	e[acct] = amount

	return nil
}

// parseFlags parses command-line flags into Config.
// Defaults come from PEDIGREE_* environment variables when set.
func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	defaults := processor.DefaultParams()

	cfg := &Config{Endowments: endowments{}}
	var breedPolicy string

	fs.StringVar(&cfg.DataPath, "data", envString("PEDIGREE_DATA", "./data"), "Data directory path")
	fs.StringVar(&cfg.HTTPAddress, "http", envString("PEDIGREE_HTTP", ":8080"), "HTTP API address")
	fs.StringVar(&cfg.KeyPath, "key", envString("PEDIGREE_KEY", ""), "Ed25519 private key path (generates new if missing)")
	fs.DurationVar(&cfg.BlockTime, "block-time", envDuration("PEDIGREE_BLOCK_TIME", 6*time.Second), "Block interval")
	fs.StringVar(&cfg.OracleURL, "oracle-url", envString("PEDIGREE_ORACLE_URL", oracle.DefaultEndpoint), "Price quote endpoint (empty disables the oracle)")
	fs.DurationVar(&cfg.OracleTimeout, "oracle-timeout", envDuration("PEDIGREE_ORACLE_TIMEOUT", oracle.DefaultTimeout), "Price quote fetch timeout")
	fs.StringVar(&cfg.NotesRedis, "notes-redis", envString("PEDIGREE_NOTES_REDIS", ""), "Redis address for off-chain notes (default local pebble)")
	fs.IntVar(&cfg.PoolSize, "pool-size", 1024, "Pending command pool capacity")
	fs.Uint64Var(&cfg.ExistentialDeposit, "existential", 1, "Existential deposit")
	fs.BoolVar(&cfg.Backup, "backup", true, "Snapshot the database before migrating")
	fs.StringVar(&cfg.LogLevel, "log-level", envString("PEDIGREE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.StringVar(&breedPolicy, "breed-policy", envString("PEDIGREE_BREED_POLICY", defaults.BreedPolicy.String()), "Breed attribute policy (zero, mix)")
	fs.Uint64Var(&cfg.Params.CreationFee, "creation-fee", defaults.CreationFee, "Fee charged to create or breed")
	fs.Uint64Var(&cfg.Params.SalePrice, "sale-price", defaults.SalePrice, "Fixed purchase price")
	fs.StringVar(&cfg.GenesisPath, "genesis", envString("PEDIGREE_GENESIS", ""), "Genesis JSON file (chain id and endowments)")
	fs.Var(cfg.Endowments, "endow", "Genesis balance as account=amount (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	policy, err := processor.ParseBreedPolicy(breedPolicy)
	if err != nil {
		return nil, err
	}

	cfg.Params.BreedPolicy = policy
	cfg.Params.Treasury = defaults.Treasury

	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", cfg.PoolSize)
	}

	return cfg, nil
}

// envString returns the environment value for key, or def when unset.
func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// envDuration returns the parsed environment duration for key, or def when unset or invalid.
func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}

	return d
}
