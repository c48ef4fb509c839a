// Package client is a Go SDK for a Pedigree node's HTTP API.
package client

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"Pedigree/internal/keys"
	"Pedigree/internal/ledger"
)

// Client connects to a node via HTTP.
type Client struct {
	baseURL string // baseURL is the node address with scheme (e.g. "http://127.0.0.1:8080")
}

// Wallet holds an account key and its next nonce.
type Wallet struct {
	mu      sync.Mutex
	privKey ed25519.PrivateKey // privKey is the ed25519 private key
	nonce   uint64             // nonce is the next nonce to sign with
}

// AssetInfo holds an asset as returned by the API.
type AssetInfo struct {
	ID      ledger.AssetID   `json:"id"`
	DNA     ledger.DNA       `json:"dna"`
	Label   ledger.Label     `json:"label"`
	Owner   ledger.AccountID `json:"owner"`
	Listed  bool             `json:"listed"`
	Parents *ledger.Parents  `json:"parents,omitempty"`
}

// AccountInfo holds an account as returned by the API.
type AccountInfo struct {
	Account ledger.AccountID `json:"account"`
	Balance uint64           `json:"balance"`
	Nonce   uint64           `json:"nonce"`
}

// Receipt holds the outcome of an executed command.
type Receipt struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
	Index  uint32 `json:"index"`
	Call   string `json:"call"`
	Error  string `json:"error,omitempty"`
}

// Status holds the node status.
type Status struct {
	Height        uint64 `json:"height"`
	NextID        uint32 `json:"nextId"`
	SchemaVersion uint16 `json:"schemaVersion"`
	Pending       int    `json:"pending"`
	CreationFee   uint64 `json:"creationFee"`
	SalePrice     uint64 `json:"salePrice"`
	BreedPolicy   string `json:"breedPolicy"`
}

// NewClient creates a client for the node at baseURL and checks it answers.
func NewClient(baseURL string) (*Client, error) {
	c := &Client{baseURL: baseURL}

	if _, err := c.Status(); err != nil {
		return nil, fmt.Errorf("get status:\n%w", err)
	}

	return c, nil
}

// NewWallet creates a wallet with a fresh key.
func NewWallet() (*Wallet, error) {
	priv, err := keys.Generate()
	if err != nil {
		return nil, err
	}

	return &Wallet{privKey: priv}, nil
}

// WalletFromKey wraps an existing key.
func WalletFromKey(priv ed25519.PrivateKey) *Wallet {
	return &Wallet{privKey: priv}
}

// Account returns the wallet's account.
func (w *Wallet) Account() ledger.AccountID {
	return keys.AccountOf(w.privKey)
}

// Status fetches the node status.
func (c *Client) Status() (*Status, error) {
	var s Status
	if err := httpGet(c.baseURL+"/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAsset fetches an asset with its owner, listing and parents.
func (c *Client) GetAsset(id ledger.AssetID) (*AssetInfo, error) {
	var a AssetInfo
	if err := httpGet(fmt.Sprintf("%s/assets/%d", c.baseURL, id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount fetches an account balance and nonce.
func (c *Client) GetAccount(acct ledger.AccountID) (*AccountInfo, error) {
	var a AccountInfo
	if err := httpGet(c.baseURL+"/accounts/"+acct.String(), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetReceipt fetches the receipt of an executed command.
func (c *Client) GetReceipt(hash string) (*Receipt, error) {
	var r Receipt
	if err := httpGet(c.baseURL+"/tx/"+hash, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Sync refreshes the wallet nonce from the node.
func (c *Client) Sync(w *Wallet) error {
	info, err := c.GetAccount(w.Account())
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.nonce = info.Nonce
	w.mu.Unlock()

	return nil
}
