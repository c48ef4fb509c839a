// Package pool is the bounded inbox of commands waiting for a block.
// Signed commands are admitted after a signature check; unsigned commands
// only after the configured validator accepts them.
package pool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"Pedigree/internal/command"
)

var (
	// ErrPoolFull is returned when the pool is at capacity.
	ErrPoolFull = errors.New("pool full")

	// ErrDuplicate is returned for a command or tag already pending.
	ErrDuplicate = errors.New("duplicate command")

	// ErrInvalidSignature is returned for signed commands whose signature does not verify.
	ErrInvalidSignature = errors.New("invalid command signature")

	// ErrNoValidator is returned when unsigned commands arrive but none are accepted.
	ErrNoValidator = errors.New("unsigned commands not accepted")
)

// Validity is what a validator grants an accepted unsigned command.
type Validity struct {
	Tag       string // Tag identifies what the command provides; one pending command per tag
	Priority  uint64 // Priority orders commands in a block, highest first
	Longevity uint64 // Longevity is the number of blocks the command stays valid, 0 for no limit
	Propagate bool   // Propagate marks the command as shareable with peers
}

// UnsignedValidator gates unsigned commands.
type UnsignedValidator interface {
	Validate(cmd command.Command, height uint64) (Validity, error)
}

// entry is a pending command.
type entry struct {
	cmd      command.Command
	hash     [32]byte
	validity Validity
	expires  uint64 // expires is the last height the command may run at, 0 for never
	seq      uint64 // seq is the arrival order
}

// Pool holds pending commands. Safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	capacity  int
	validator UnsignedValidator
	height    uint64 // height is the last executed block
	seq       uint64
	entries   []*entry
	hashes    map[[32]byte]struct{}
	tags      map[string]struct{}
}

// New creates a pool holding at most capacity commands.
// A nil validator rejects every unsigned command.
func New(capacity int, validator UnsignedValidator) *Pool {
	return &Pool{
		capacity:  capacity,
		validator: validator,
		hashes:    make(map[[32]byte]struct{}),
		tags:      make(map[string]struct{}),
	}
}

// Submit admits a signed command.
func (p *Pool) Submit(cmd command.Command) error {
	if cmd.Origin.Kind != command.OriginSigned {
		return fmt.Errorf("%w: unsigned command on the signed path", ErrInvalidSignature)
	}

	if !cmd.VerifySignature() {
		return ErrInvalidSignature
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.add(cmd, Validity{})
}

// SubmitUnsigned admits an unsigned command through the validator.
func (p *Pool) SubmitUnsigned(cmd command.Command) error {
	if p.validator == nil {
		return ErrNoValidator
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	validity, err := p.validator.Validate(cmd, p.height)
	if err != nil {
		return err
	}

	if _, taken := p.tags[validity.Tag]; validity.Tag != "" && taken {
		return fmt.Errorf("%w: tag %s", ErrDuplicate, validity.Tag)
	}

	return p.add(cmd, validity)
}

// add inserts a command. Caller must hold the lock.
func (p *Pool) add(cmd command.Command, validity Validity) error {
	hash := cmd.Hash()

	if _, dup := p.hashes[hash]; dup {
		return ErrDuplicate
	}

	if len(p.entries) >= p.capacity {
		return ErrPoolFull
	}

	e := &entry{
		cmd:      cmd,
		hash:     hash,
		validity: validity,
		seq:      p.seq,
	}
	p.seq++

	if validity.Longevity > 0 {
		e.expires = p.height + validity.Longevity
	}

	p.entries = append(p.entries, e)
	p.hashes[hash] = struct{}{}

	if validity.Tag != "" {
		p.tags[validity.Tag] = struct{}{}
	}

	return nil
}

// Drain removes and returns up to max commands for the block at height,
// highest priority first, arrival order within a priority. Commands whose
// validity window ended before height are dropped.
func (p *Pool) Drain(height uint64, max int) []command.Command {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pruneLocked(height)

	sort.SliceStable(p.entries, func(i, j int) bool {
		a, b := p.entries[i], p.entries[j]
		if a.validity.Priority != b.validity.Priority {
			return a.validity.Priority > b.validity.Priority
		}
		return a.seq < b.seq
	})

	n := min(max, len(p.entries))
	out := make([]command.Command, n)

	for i, e := range p.entries[:n] {
		out[i] = e.cmd
		p.forget(e)
	}

	p.entries = append(p.entries[:0], p.entries[n:]...)

	return out
}

// SetHeight records the last executed block and drops expired commands.
func (p *Pool) SetHeight(height uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.height = height
	p.pruneLocked(height + 1)
}

// Len returns the number of pending commands.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}

// pruneLocked drops entries that cannot run at height.
func (p *Pool) pruneLocked(height uint64) {
	kept := p.entries[:0]

	for _, e := range p.entries {
		if e.expires != 0 && e.expires < height {
			p.forget(e)
			continue
		}
		kept = append(kept, e)
	}

	p.entries = kept
}

// forget releases the hash and tag of an entry.
func (p *Pool) forget(e *entry) {
	delete(p.hashes, e.hash)

	if e.validity.Tag != "" {
		delete(p.tags, e.validity.Tag)
	}
}
