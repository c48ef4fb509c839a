package processor

import (
	"Pedigree/internal/currency"
	"Pedigree/internal/ledger"
)

// EventKind names a domain event.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventBred        EventKind = "bred"
	EventTransferred EventKind = "transferred"
	EventListed      EventKind = "listed"
	EventBought      EventKind = "bought"
)

// Event is emitted by a successful command. Fields not relevant to the kind are empty.
type Event struct {
	Kind      EventKind         `json:"kind"`
	Who       ledger.AccountID  `json:"who"`
	ID        ledger.AssetID    `json:"id"`
	Asset     *ledger.Asset     `json:"asset,omitempty"`
	Parents   *ledger.Parents   `json:"parents,omitempty"`
	Recipient *ledger.AccountID `json:"recipient,omitempty"`
	Seller    *ledger.AccountID `json:"seller,omitempty"`
	Price     uint64            `json:"price,omitempty"`
}

// Note is an off-chain note queued by a command, written after the block commits.
type Note struct {
	Key   []byte
	Value []byte
}

// Env is the execution context of one command: the ledger and balances
// (usually opened over one uncommitted batch), the block it runs in, and the
// events and notes it produced. A fresh Env is used per command; its events
// and notes only count if the command succeeds.
type Env struct {
	Ledger   *ledger.Store
	Balances *currency.Balances

	Height uint64   // Height is the block number
	Seed   [32]byte // Seed is the block randomness
	Index  uint32   // Index is the command position in the block

	Events []Event
	Notes  []Note
}

func (e *Env) emit(ev Event) {
	e.Events = append(e.Events, ev)
}

func (e *Env) note(key, value []byte) {
	e.Notes = append(e.Notes, Note{Key: key, Value: value})
}
