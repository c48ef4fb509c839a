// Package chain is the single-producer block executor: it drains the pool,
// runs each command in its own batch through the processor, records
// receipts and events, and fires post-block hooks.
package chain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"Pedigree/internal/command"
	"Pedigree/internal/currency"
	"Pedigree/internal/genesis"
	"Pedigree/internal/ledger"
	"Pedigree/internal/logger"
	"Pedigree/internal/offchain"
	"Pedigree/internal/pool"
	"Pedigree/internal/processor"
	"Pedigree/internal/snapshot"
	"Pedigree/internal/storage"
)

const (
	// recentEvents is the number of events kept for queries.
	recentEvents = 256

	// recentReceipts is the number of receipts kept for queries.
	recentReceipts = 1024
)

// ErrBadNonce is recorded for signed commands whose nonce is not the next expected one.
var ErrBadNonce = errors.New("bad nonce")

// Config holds the chain settings.
type Config struct {
	ExistentialDeposit uint64                      // ExistentialDeposit is the minimum kept-alive balance
	MaxPerBlock        int                         // MaxPerBlock bounds commands drained per block
	Endowments         map[ledger.AccountID]uint64 // Endowments are minted once at genesis
	ChainID            string                      // ChainID seeds the genesis randomness
}

// Receipt records the outcome of one command.
type Receipt struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
	Index  uint32 `json:"index"`
	Call   string `json:"call"`
	Error  string `json:"error,omitempty"`
}

// Block is the result of one ProduceBlock call.
type Block struct {
	Height   uint64
	Seed     [32]byte
	Receipts []Receipt
	Events   []processor.Event
}

// Hook runs after a block is committed.
type Hook func(ctx context.Context, b *Block)

// Chain executes blocks against the ledger database.
type Chain struct {
	mu     sync.Mutex
	db     *storage.Storage
	proc   *processor.Processor
	pool   *pool.Pool
	beacon Randomness
	notes  offchain.Store // notes may be nil
	cfg    Config
	hooks  []Hook
	log    *slog.Logger

	height uint64
	seed   [32]byte

	events   []processor.Event
	receipts map[string]Receipt
	order    []string // order is the receipt hashes, oldest first
}

// New opens the chain over db, applying genesis on first start.
func New(db *storage.Storage, proc *processor.Processor, p *pool.Pool, beacon Randomness, notes offchain.Store, cfg Config) (*Chain, error) {
	if cfg.MaxPerBlock <= 0 {
		cfg.MaxPerBlock = 1024
	}

	c := &Chain{
		db:       db,
		proc:     proc,
		pool:     p,
		beacon:   beacon,
		notes:    notes,
		cfg:      cfg,
		log:      logger.Component("chain"),
		receipts: make(map[string]Receipt),
	}

	if err := c.loadHead(); err != nil {
		return nil, err
	}

	p.SetHeight(c.height)

	return c, nil
}

// OnBlock registers a hook run after each block.
func (c *Chain) OnBlock(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = append(c.hooks, h)
}

// loadHead reads the persisted head or writes genesis.
func (c *Chain) loadHead() error {
	data, err := c.db.Get(keyHeight)
	if err != nil {
		return fmt.Errorf("read head:\n%w", err)
	}

	if data == nil {
		return c.genesis()
	}

	if len(data) != 8 {
		return fmt.Errorf("invalid head length: %d", len(data))
	}
	c.height = binary.LittleEndian.Uint64(data)

	seed, err := c.db.Get(keySeed)
	if err != nil {
		return fmt.Errorf("read seed:\n%w", err)
	}

	if len(seed) != 32 {
		return fmt.Errorf("invalid seed length: %d", len(seed))
	}
	copy(c.seed[:], seed)

	return nil
}

// genesis mints the endowments and writes height 0.
func (c *Chain) genesis() error {
	batch := c.db.NewBatch()
	defer batch.Discard()

	cfg := genesis.Config{ChainID: c.cfg.ChainID, Endowments: c.cfg.Endowments}

	seed, err := genesis.Apply(batch, cfg, c.cfg.ExistentialDeposit)
	if err != nil {
		return fmt.Errorf("apply genesis:\n%w", err)
	}

	c.seed = seed
	c.height = 0

	if err := c.writeHead(batch); err != nil {
		return err
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit genesis:\n%w", err)
	}

	c.log.Info("genesis applied", "endowments", len(c.cfg.Endowments))

	return nil
}

// writeHead records the current height and seed.
func (c *Chain) writeHead(kv storage.KV) error {
	if err := kv.Set(keyHeight, binary.LittleEndian.AppendUint64(nil, c.height)); err != nil {
		return err
	}
	return kv.Set(keySeed, c.seed[:])
}

// ProduceBlock executes the next block. Command failures are recorded in
// receipts; only storage failures return an error.
func (c *Chain) ProduceBlock(ctx context.Context) (*Block, error) {
	c.mu.Lock()

	start := time.Now()
	height := c.height + 1
	seed := c.beacon.Seed(c.seed, height)

	block := &Block{Height: height, Seed: seed}

	var notes []processor.Note

	for i, cmd := range c.pool.Drain(height, c.cfg.MaxPerBlock) {
		receipt, env, err := c.execute(height, seed, uint32(i), cmd)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}

		block.Receipts = append(block.Receipts, receipt)

		if env != nil {
			block.Events = append(block.Events, env.Events...)
			notes = append(notes, env.Notes...)
		}
	}

	prevHeight, prevSeed := c.height, c.seed
	c.height, c.seed = height, seed

	if err := c.writeHead(c.db); err != nil {
		c.height, c.seed = prevHeight, prevSeed
		c.mu.Unlock()
		return nil, fmt.Errorf("write head:\n%w", err)
	}

	c.pool.SetHeight(height)
	c.remember(block)
	hooks := append([]Hook(nil), c.hooks...)

	c.mu.Unlock()

	c.flushNotes(ctx, notes)

	c.log.Debug("block produced",
		"height", height,
		"commands", len(block.Receipts),
		"events", len(block.Events),
		logger.Timed(start),
	)

	for _, h := range hooks {
		h(ctx, block)
	}

	return block, nil
}

// execute runs one command in its own batch. The returned Env is nil when
// the command failed.
func (c *Chain) execute(height uint64, seed [32]byte, index uint32, cmd command.Command) (Receipt, *processor.Env, error) {
	hash := cmd.Hash()
	receipt := Receipt{
		Hash:   hex.EncodeToString(hash[:]),
		Height: height,
		Index:  index,
		Call:   cmd.Call.Kind.String(),
	}

	signed := cmd.Origin.Kind == command.OriginSigned
	sender := cmd.Origin.Account

	if signed {
		expected, err := readNonce(c.db, sender)
		if err != nil {
			return receipt, nil, err
		}

		if cmd.Nonce != expected {
			receipt.Error = fmt.Sprintf("%v: got %d, want %d", ErrBadNonce, cmd.Nonce, expected)
			return receipt, nil, nil
		}
	}

	batch := c.db.NewBatch()
	defer batch.Discard()

	env := &processor.Env{
		Ledger:   ledger.NewStore(batch),
		Balances: currency.NewBalances(batch, c.cfg.ExistentialDeposit),
		Height:   height,
		Seed:     seed,
		Index:    index,
	}

	if err := c.proc.Dispatch(env, cmd); err != nil {
		receipt.Error = err.Error()
		c.log.Debug("command failed", "hash", receipt.Hash[:16], "call", receipt.Call, "error", err)

		batch.Discard()
		env = nil

		if signed {
			if err := writeNonce(c.db, sender, cmd.Nonce+1); err != nil {
				return receipt, nil, fmt.Errorf("bump nonce:\n%w", err)
			}
		}

		return receipt, nil, nil
	}

	if signed {
		if err := writeNonce(batch, sender, cmd.Nonce+1); err != nil {
			return receipt, nil, err
		}
	}

	if err := batch.Commit(); err != nil {
		return receipt, nil, fmt.Errorf("commit command %s:\n%w", receipt.Hash[:16], err)
	}

	return receipt, env, nil
}

// flushNotes writes the block's notes to the off-chain store. Failures are logged.
func (c *Chain) flushNotes(ctx context.Context, notes []processor.Note) {
	if c.notes == nil {
		return
	}

	for _, n := range notes {
		if err := c.notes.Set(ctx, n.Key, n.Value); err != nil {
			c.log.Warn("write note failed", "error", err)
		}
	}
}

// remember keeps the block's events and receipts for queries. Caller holds the lock.
func (c *Chain) remember(b *Block) {
	c.events = append(c.events, b.Events...)
	if over := len(c.events) - recentEvents; over > 0 {
		c.events = append(c.events[:0], c.events[over:]...)
	}

	for _, r := range b.Receipts {
		if _, seen := c.receipts[r.Hash]; !seen {
			c.order = append(c.order, r.Hash)
		}
		c.receipts[r.Hash] = r
	}

	for len(c.order) > recentReceipts {
		delete(c.receipts, c.order[0])
		c.order = c.order[1:]
	}
}

// Height returns the last executed block.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.height
}

// Nonce returns the next expected nonce of acct.
func (c *Chain) Nonce(acct ledger.AccountID) (uint64, error) {
	return readNonce(c.db, acct)
}

// RecentEvents returns up to limit of the latest events, oldest first.
func (c *Chain) RecentEvents(limit int) []processor.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 || limit > len(c.events) {
		limit = len(c.events)
	}

	return append([]processor.Event(nil), c.events[len(c.events)-limit:]...)
}

// Receipt returns the receipt of a recently executed command.
func (c *Chain) Receipt(hash string) (Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.receipts[hash]
	return r, ok
}

// Snapshot exports the ledger database between blocks.
func (c *Chain) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return snapshot.Create(c.db, c.height)
}

// Run produces a block every interval until ctx is done.
func (c *Chain) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.ProduceBlock(ctx); err != nil {
				c.log.Error("block production failed", "error", err)
			}
		}
	}
}
