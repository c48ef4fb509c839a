// Package oracle carries an external price quote into the ledger: a
// best-effort producer fetches and signs a quote each block, and a validator
// gates the resulting unsigned command before it may enter the pool.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"Pedigree/internal/command"
	"Pedigree/internal/logger"
	"Pedigree/internal/offchain"
)

// ErrNoSigner is returned when the node has no local signing key.
var ErrNoSigner = errors.New("no local account available")

// Signer signs payloads with a local key.
type Signer interface {
	Sign(message []byte) []byte
	PublicKeyBytes() []byte
}

// Submitter accepts unsigned commands for inclusion. No delivery guarantee.
type Submitter interface {
	SubmitUnsigned(cmd command.Command) error
}

// Producer runs one oracle round per block.
type Producer struct {
	notes     offchain.Store
	source    QuoteSource
	signer    Signer
	submitter Submitter
	log       *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewProducer creates a producer. A nil signer makes every round stop
// before signing; a nil note store skips the note lookup.
func NewProducer(notes offchain.Store, source QuoteSource, signer Signer, submitter Submitter) *Producer {
	return &Producer{
		notes:     notes,
		source:    source,
		signer:    signer,
		submitter: submitter,
		log:       logger.Component("oracle"),
	}
}

// Trigger starts a round for height in the background. If the previous round
// is still running the height is skipped.
func (p *Producer) Trigger(ctx context.Context, height uint64) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debug("previous round still running, skipping", "height", height)
		return
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)

		_ = p.Run(ctx, height)
	}()
}

// Wait blocks until the background round, if any, returns.
func (p *Producer) Wait() {
	p.wg.Wait()
}

// Run executes one round: read the note of height, fetch a quote, sign it
// and submit it. Every failure is logged and ends the round.
func (p *Producer) Run(ctx context.Context, height uint64) error {
	start := time.Now()
	log := p.log.With("round", uuid.NewString(), "height", height)

	p.readNote(ctx, log, height)

	quote, err := p.source.Fetch(ctx)
	if err != nil {
		log.Warn("quote fetch failed", "error", err)
		return err
	}

	log.Debug("quote fetched", "price", quote.Price, "mins", quote.Minutes)

	if p.signer == nil {
		log.Warn("no local account available, skipping round")
		return ErrNoSigner
	}

	payload := command.OraclePayload{
		Price:  []byte(quote.Price),
		Public: p.signer.PublicKeyBytes(),
	}
	signature := p.signer.Sign(payload.SigningBytes())

	cmd := command.NewUnsigned(command.SubmitOraclePayload(payload, signature))

	if err := p.submitter.SubmitUnsigned(cmd); err != nil {
		log.Warn("payload submission failed", "error", err)
		return fmt.Errorf("submit payload:\n%w", err)
	}

	log.Info("oracle payload submitted", "price", quote.Price, logger.Timed(start))

	return nil
}

// readNote logs the note written at height, if any.
func (p *Producer) readNote(ctx context.Context, log *slog.Logger, height uint64) {
	if p.notes == nil {
		return
	}

	data, found, err := p.notes.Get(ctx, offchain.NoteKey(height))
	if err != nil {
		log.Warn("read note failed", "error", err)
		return
	}

	if !found {
		log.Debug("no note for height")
		return
	}

	note, err := offchain.DecodeIndexingNote(data)
	if err != nil {
		log.Warn("decode note failed", "error", err)
		return
	}

	log.Info("note found", "op", note.Op, "label", note.Label.String())
}
