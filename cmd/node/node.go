package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Pedigree/internal/api"
	"Pedigree/internal/chain"
	"Pedigree/internal/genesis"
	"Pedigree/internal/keys"
	"Pedigree/internal/logger"
	"Pedigree/internal/migration"
	"Pedigree/internal/offchain"
	"Pedigree/internal/oracle"
	"Pedigree/internal/pool"
	"Pedigree/internal/processor"
	"Pedigree/internal/snapshot"
	"Pedigree/internal/storage"
)

// Node represents a running Pedigree node.
type Node struct {
	cfg      *Config
	storage  *storage.Storage
	notes    offchain.Store
	pool     *pool.Pool
	chain    *chain.Chain
	producer *oracle.Producer
	api      *api.Server
}

// NewNode creates and initializes a new node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}

	steps := []func() error{
		n.initStorage,
		n.initMigration,
		n.initNotes,
		n.initChain,
		n.initOracle,
	}

	for _, step := range steps {
		if err := step(); err != nil {
			n.Close()
			return nil, err
		}
	}

	return n, nil
}

// initStorage initializes the Pebble storage.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initMigration upgrades the on-disk schema before anything reads assets.
func (n *Node) initMigration() error {
	engine := migration.New(n.storage)

	pending, from, err := engine.Pending()
	if err != nil {
		return fmt.Errorf("check schema:\n%w", err)
	}

	if !pending {
		return nil
	}

	if n.cfg.Backup {
		path := filepath.Join(n.cfg.DataPath, fmt.Sprintf("backup-v%d-%d.snap", from, time.Now().Unix()))
		if err := snapshot.WriteFile(path, n.storage, 0); err != nil {
			return fmt.Errorf("backup before migration:\n%w", err)
		}
		logger.Info("pre-migration backup written", "path", path)
	}

	if _, err := engine.Run(); err != nil {
		return fmt.Errorf("migrate schema:\n%w", err)
	}

	return nil
}

// initNotes opens the off-chain note store.
func (n *Node) initNotes() error {
	if n.cfg.NotesRedis != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		store, err := offchain.DialRedis(ctx, n.cfg.NotesRedis)
		if err != nil {
			return fmt.Errorf("init notes:\n%w", err)
		}

		n.notes = store
		return nil
	}

	store, err := offchain.OpenPebble(filepath.Join(n.cfg.DataPath, "offchain"))
	if err != nil {
		return fmt.Errorf("init notes:\n%w", err)
	}

	n.notes = store

	return nil
}

// initChain wires the pool, processor and block producer.
func (n *Node) initChain() error {
	n.pool = pool.New(n.cfg.PoolSize, oracle.NewValidator())

	bls, err := keys.DeriveFromED25519(n.cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("derive bls key:\n%w", err)
	}

	gen := genesis.Config{}
	if n.cfg.GenesisPath != "" {
		if gen, err = genesis.Load(n.cfg.GenesisPath); err != nil {
			return err
		}
	}
	gen.Merge(n.cfg.Endowments)

	c, err := chain.New(
		n.storage,
		processor.New(n.cfg.Params),
		n.pool,
		chain.NewSignatureBeacon(bls),
		n.notes,
		chain.Config{
			ExistentialDeposit: n.cfg.ExistentialDeposit,
			Endowments:         gen.Endowments,
			ChainID:            gen.ChainID,
		},
	)
	if err != nil {
		return fmt.Errorf("init chain:\n%w", err)
	}

	n.chain = c

	return nil
}

// initOracle starts a price round after every block when an endpoint is configured.
func (n *Node) initOracle() error {
	if n.cfg.OracleURL == "" {
		return nil
	}

	bls, err := keys.DeriveFromED25519(n.cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("derive bls key:\n%w", err)
	}

	source := oracle.NewHTTPQuoteSource(n.cfg.OracleURL, n.cfg.OracleTimeout)
	n.producer = oracle.NewProducer(n.notes, source, bls, n.pool)

	n.chain.OnBlock(func(ctx context.Context, b *chain.Block) {
		n.producer.Trigger(ctx, b.Height)
	})

	return nil
}

// Run starts the node and blocks until shutdown signal.
func (n *Node) Run() error {
	n.api = api.New(n.cfg.HTTPAddress, n.pool, n.chain, n.storage, n.cfg.Params, n.cfg.ExistentialDeposit)
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n.chain.Run(ctx, n.cfg.BlockTime)

	logger.Info("shutting down")

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		n.api.Stop()
	}

	if n.producer != nil {
		n.producer.Wait()
	}

	if n.notes != nil {
		n.notes.Close()
	}

	if n.storage != nil {
		n.storage.Close()
	}

	return nil
}
