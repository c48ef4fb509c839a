// Package currency is the fungible balance ledger that fees and sale
// prices are paid from.
package currency

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"Pedigree/internal/ledger"
	"Pedigree/internal/storage"
)

var (
	// ErrInsufficientFunds is returned when the sender cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceOverflow is returned when a credit would wrap the recipient balance.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrBelowExistentialDeposit is returned when a transfer would create a dust account.
	ErrBelowExistentialDeposit = errors.New("below existential deposit")
)

// prefixBalance is the storage prefix for balances: b:<account> -> u64 LE.
var prefixBalance = []byte("b:")

// Balances reads and moves balances through a storage view.
// Every operation computes all new balances before writing any of them,
// so a failed call leaves both sides untouched.
type Balances struct {
	kv          storage.KV
	existential uint64 // existential is the minimum balance a kept-alive account retains
}

// NewBalances creates a balance ledger over kv.
func NewBalances(kv storage.KV, existentialDeposit uint64) *Balances {
	return &Balances{kv: kv, existential: existentialDeposit}
}

// ModuleAccount derives the protocol-owned account for a module id.
// Nobody holds its private key; funds sent there stay there.
func ModuleAccount(id string) ledger.AccountID {
	h := blake3.New()
	h.Write([]byte("modl"))
	h.Write([]byte(id))

	var acct ledger.AccountID
	h.Sum(acct[:0])

	return acct
}

// Balance returns the free balance of acct (zero for unknown accounts).
func (b *Balances) Balance(acct ledger.AccountID) (uint64, error) {
	data, err := b.kv.Get(balanceKey(acct))
	if err != nil {
		return 0, fmt.Errorf("read balance %s:\n%w", acct.Short(), err)
	}

	if data == nil {
		return 0, nil
	}

	if len(data) != 8 {
		return 0, fmt.Errorf("invalid balance length for %s: %d", acct.Short(), len(data))
	}

	return binary.LittleEndian.Uint64(data), nil
}

// Mint credits amount to acct out of thin air. Used for genesis endowments.
func (b *Balances) Mint(acct ledger.AccountID, amount uint64) error {
	balance, err := b.Balance(acct)
	if err != nil {
		return err
	}

	// Overflow check: balance + amount must not wrap
	newBalance := balance + amount
	if newBalance < balance {
		return fmt.Errorf("mint %d to %s: %w", amount, acct.Short(), ErrBalanceOverflow)
	}

	return b.setBalance(acct, newBalance)
}

// Transfer moves amount from one account to another.
// With keepAlive the sender must keep at least the existential deposit.
// Transfers to self succeed without touching storage once covered.
func (b *Balances) Transfer(from, to ledger.AccountID, amount uint64, keepAlive bool) error {
	fromBalance, err := b.Balance(from)
	if err != nil {
		return err
	}

	if fromBalance < amount {
		return ErrInsufficientFunds
	}

	remaining := fromBalance - amount
	if keepAlive && remaining < b.existential {
		return ErrInsufficientFunds
	}

	if from == to || amount == 0 {
		return nil
	}

	toBalance, err := b.Balance(to)
	if err != nil {
		return err
	}

	credited := toBalance + amount
	if credited < toBalance {
		return ErrBalanceOverflow
	}

	if credited < b.existential {
		return ErrBelowExistentialDeposit
	}

	if err := b.setBalance(from, remaining); err != nil {
		return err
	}

	return b.setBalance(to, credited)
}

// setBalance writes a balance, deleting the entry when it reaches zero.
func (b *Balances) setBalance(acct ledger.AccountID, amount uint64) error {
	if amount == 0 {
		return b.kv.Delete(balanceKey(acct))
	}

	return b.kv.Set(balanceKey(acct), binary.LittleEndian.AppendUint64(nil, amount))
}

// balanceKey builds the storage key for an account balance.
func balanceKey(acct ledger.AccountID) []byte {
	key := make([]byte, len(prefixBalance)+ledger.AccountSize)
	copy(key, prefixBalance)
	copy(key[len(prefixBalance):], acct[:])

	return key
}
