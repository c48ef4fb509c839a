package client

import (
	"fmt"

	"Pedigree/internal/command"
	"Pedigree/internal/ledger"
)

// Create submits a create command and returns its hash.
func (c *Client) Create(w *Wallet, label string) (string, error) {
	l, err := ledger.ParseLabel(label)
	if err != nil {
		return "", err
	}

	return c.submit(w, command.Create(l))
}

// Breed submits a breed command and returns its hash.
func (c *Client) Breed(w *Wallet, a, b ledger.AssetID, label string) (string, error) {
	l, err := ledger.ParseLabel(label)
	if err != nil {
		return "", err
	}

	return c.submit(w, command.Breed(a, b, l))
}

// Transfer submits a transfer command and returns its hash.
func (c *Client) Transfer(w *Wallet, recipient ledger.AccountID, id ledger.AssetID) (string, error) {
	return c.submit(w, command.Transfer(recipient, id))
}

// List submits a list command and returns its hash.
func (c *Client) List(w *Wallet, id ledger.AssetID) (string, error) {
	return c.submit(w, command.List(id))
}

// Purchase submits a purchase command and returns its hash.
func (c *Client) Purchase(w *Wallet, id ledger.AssetID) (string, error) {
	return c.submit(w, command.Purchase(id))
}

// submit signs call with the wallet's next nonce and posts it.
// The nonce only advances when the node accepts the command.
func (c *Client) submit(w *Wallet, call command.Call) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cmd := command.NewSigned(w.privKey, w.nonce, call)

	var resp struct {
		Hash string `json:"hash"`
	}

	if err := httpPostJSON(c.baseURL+"/tx", cmd, &resp); err != nil {
		return "", fmt.Errorf("submit %s:\n%w", call.Kind, err)
	}

	w.nonce++

	return resp.Hash, nil
}
