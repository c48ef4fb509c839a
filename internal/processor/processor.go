// Package processor applies commands to the ledger. Each command either
// succeeds, leaving its writes in the Env's store, or returns an error; the
// caller discards the store's batch on error so no partial command is kept.
package processor

import (
	"fmt"
	"log/slog"
	"math"

	"Pedigree/internal/command"
	"Pedigree/internal/currency"
	"Pedigree/internal/dna"
	"Pedigree/internal/keys"
	"Pedigree/internal/ledger"
	"Pedigree/internal/logger"
	"Pedigree/internal/offchain"
)

// BreedPolicy selects how a bred asset's attribute is computed.
type BreedPolicy uint8

const (
	// BreedZero gives every bred asset an all-zero attribute.
	BreedZero BreedPolicy = iota

	// BreedMix mixes the parents' attributes under a derived selector.
	BreedMix
)

// ParseBreedPolicy maps "zero" or "mix" to a policy.
func ParseBreedPolicy(s string) (BreedPolicy, error) {
	switch s {
	case "zero", "":
		return BreedZero, nil
	case "mix":
		return BreedMix, nil
	default:
		return BreedZero, fmt.Errorf("unknown breed policy %q", s)
	}
}

// String returns the flag name of the policy.
func (p BreedPolicy) String() string {
	if p == BreedMix {
		return "mix"
	}
	return "zero"
}

// TreasuryModule is the module id of the account creation fees are paid to.
const TreasuryModule = "py/kitty"

// Params are the fixed economic parameters of the processor.
type Params struct {
	CreationFee uint64           // CreationFee is charged for create and breed
	SalePrice   uint64           // SalePrice is paid by a buyer to the seller
	Treasury    ledger.AccountID // Treasury receives creation fees
	BreedPolicy BreedPolicy
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		CreationFee: 500,
		SalePrice:   500,
		Treasury:    currency.ModuleAccount(TreasuryModule),
		BreedPolicy: BreedZero,
	}
}

// Processor dispatches commands.
type Processor struct {
	params Params
	log    *slog.Logger
}

// New creates a processor with the given parameters.
func New(params Params) *Processor {
	return &Processor{
		params: params,
		log:    logger.Component("processor"),
	}
}

// Params returns the processor parameters.
func (p *Processor) Params() Params {
	return p.params
}

// Dispatch applies cmd to env. The origin is checked against the call kind
// before anything is read: user calls need a signed origin, the oracle call
// needs the unsigned one.
func (p *Processor) Dispatch(env *Env, cmd command.Command) error {
	call := cmd.Call

	switch cmd.Origin.Kind {
	case command.OriginNone:
		if call.Kind != command.KindSubmitOraclePayload {
			return fmt.Errorf("%w: %s", ErrBadOrigin, call.Kind)
		}
		return p.submitOraclePayload(call)

	case command.OriginSigned:
		return p.dispatchSigned(env, cmd.Origin.Account, call)

	default:
		return fmt.Errorf("%w: origin kind %d", ErrBadOrigin, cmd.Origin.Kind)
	}
}

// dispatchSigned routes a call made by caller.
func (p *Processor) dispatchSigned(env *Env, caller ledger.AccountID, call command.Call) error {
	switch call.Kind {
	case command.KindCreate:
		_, err := p.create(env, caller, call.Label)
		return err
	case command.KindBreed:
		_, err := p.breed(env, caller, call.ParentA, call.ParentB, call.Label)
		return err
	case command.KindTransfer:
		return p.transfer(env, caller, call.Recipient, call.ID)
	case command.KindList:
		return p.list(env, caller, call.ID)
	case command.KindPurchase:
		return p.purchase(env, caller, call.ID)
	case command.KindSubmitOraclePayload:
		return fmt.Errorf("%w: %s", ErrBadOrigin, call.Kind)
	default:
		return fmt.Errorf("%w: %s", ErrUnauthorizedCall, call.Kind)
	}
}

// create mints a new asset for caller.
func (p *Processor) create(env *Env, caller ledger.AccountID, label ledger.Label) (ledger.AssetID, error) {
	id, err := p.allocate(env)
	if err != nil {
		return 0, err
	}

	asset := ledger.Asset{
		DNA:   dna.Derive(env.Seed, caller, env.Index),
		Label: label,
	}

	if err := p.chargeFee(env, caller); err != nil {
		return 0, err
	}

	if err := p.insert(env, id, asset, caller); err != nil {
		return 0, err
	}

	env.emit(Event{Kind: EventCreated, Who: caller, ID: id, Asset: &asset})

	// Later creates in the same block overwrite the note.
	note := offchain.IndexingNote{Op: offchain.OpSubmitName, Label: label}
	env.note(offchain.NoteKey(env.Height), note.Encode())

	return id, nil
}

// breed mints a new asset for caller descending from parents a and b.
func (p *Processor) breed(env *Env, caller ledger.AccountID, a, b ledger.AssetID, label ledger.Label) (ledger.AssetID, error) {
	if a == b {
		return 0, ErrIdenticalParents
	}

	parentA, err := p.mustAsset(env, a)
	if err != nil {
		return 0, err
	}

	parentB, err := p.mustAsset(env, b)
	if err != nil {
		return 0, err
	}

	id, err := p.allocate(env)
	if err != nil {
		return 0, err
	}

	asset := ledger.Asset{Label: label}
	if p.params.BreedPolicy == BreedMix {
		selector := dna.Derive(env.Seed, caller, env.Index)
		asset.DNA = dna.Mix(parentA.DNA, parentB.DNA, selector)
	}

	if err := p.chargeFee(env, caller); err != nil {
		return 0, err
	}

	if err := p.insert(env, id, asset, caller); err != nil {
		return 0, err
	}

	parents := ledger.Parents{A: a, B: b}
	if err := env.Ledger.PutParents(id, parents); err != nil {
		return 0, err
	}

	env.emit(Event{Kind: EventBred, Who: caller, ID: id, Asset: &asset, Parents: &parents})

	return id, nil
}

// transfer hands id from caller to recipient.
func (p *Processor) transfer(env *Env, caller, recipient ledger.AccountID, id ledger.AssetID) error {
	owner, err := p.mustOwner(env, id)
	if err != nil {
		return err
	}

	if owner != caller {
		return fmt.Errorf("%w: asset %d", ErrNotOwner, id)
	}

	if err := env.Ledger.PutOwner(id, recipient); err != nil {
		return err
	}

	env.emit(Event{Kind: EventTransferred, Who: caller, ID: id, Recipient: &recipient})

	return nil
}

// list puts id up for sale at the fixed price.
func (p *Processor) list(env *Env, caller ledger.AccountID, id ledger.AssetID) error {
	owner, err := p.mustOwner(env, id)
	if err != nil {
		return err
	}

	if owner != caller {
		return fmt.Errorf("%w: asset %d", ErrNotOwner, id)
	}

	listed, err := env.Ledger.IsListed(id)
	if err != nil {
		return err
	}

	if listed {
		return fmt.Errorf("%w: asset %d", ErrAlreadyListed, id)
	}

	if err := env.Ledger.SetListed(id); err != nil {
		return err
	}

	env.emit(Event{Kind: EventListed, Who: caller, ID: id})

	return nil
}

// purchase buys a listed asset for caller, paying the seller.
func (p *Processor) purchase(env *Env, caller ledger.AccountID, id ledger.AssetID) error {
	seller, err := p.mustOwner(env, id)
	if err != nil {
		return err
	}

	if seller == caller {
		return fmt.Errorf("%w: asset %d", ErrOwnerCannotBuyOwn, id)
	}

	listed, err := env.Ledger.IsListed(id)
	if err != nil {
		return err
	}

	if !listed {
		return fmt.Errorf("%w: asset %d", ErrNotListed, id)
	}

	if err := env.Balances.Transfer(caller, seller, p.params.SalePrice, true); err != nil {
		return fmt.Errorf("pay sale price:\n%w", err)
	}

	if err := env.Ledger.PutOwner(id, caller); err != nil {
		return err
	}

	if err := env.Ledger.ClearListing(id); err != nil {
		return err
	}

	env.emit(Event{Kind: EventBought, Who: caller, ID: id, Seller: &seller, Price: p.params.SalePrice})

	return nil
}

// submitOraclePayload accepts a quote from the oracle. The validator has
// already checked the signature; it is checked again here.
func (p *Processor) submitOraclePayload(call command.Call) error {
	payload := call.Payload
	if payload == nil || !keys.Verify(call.PayloadSignature, payload.SigningBytes(), payload.Public) {
		return ErrBadSignature
	}

	p.log.Info("oracle quote received",
		"price", string(payload.Price),
		"signer", fmt.Sprintf("%x", payload.Public[:4]),
	)

	return nil
}

// allocate returns the next asset id and advances the counter.
func (p *Processor) allocate(env *Env) (ledger.AssetID, error) {
	id, err := env.Ledger.NextID()
	if err != nil {
		return 0, err
	}

	if id == math.MaxUint32 {
		return 0, ErrIdentityExhausted
	}

	if err := env.Ledger.SetNextID(id + 1); err != nil {
		return 0, err
	}

	return id, nil
}

// chargeFee moves the creation fee from payer to the treasury.
func (p *Processor) chargeFee(env *Env, payer ledger.AccountID) error {
	if err := env.Balances.Transfer(payer, p.params.Treasury, p.params.CreationFee, true); err != nil {
		return fmt.Errorf("charge creation fee:\n%w", err)
	}
	return nil
}

// insert writes the record and owner of a new asset.
func (p *Processor) insert(env *Env, id ledger.AssetID, asset ledger.Asset, owner ledger.AccountID) error {
	if err := env.Ledger.PutAsset(id, asset); err != nil {
		return err
	}
	return env.Ledger.PutOwner(id, owner)
}

// mustAsset returns the record of id or ErrUnknownAsset.
func (p *Processor) mustAsset(env *Env, id ledger.AssetID) (ledger.Asset, error) {
	asset, found, err := env.Ledger.Asset(id)
	if err != nil {
		return ledger.Asset{}, err
	}

	if !found {
		return ledger.Asset{}, fmt.Errorf("%w: %d", ErrUnknownAsset, id)
	}

	return asset, nil
}

// mustOwner returns the owner of an existing asset or ErrUnknownAsset.
func (p *Processor) mustOwner(env *Env, id ledger.AssetID) (ledger.AccountID, error) {
	exists, err := env.Ledger.HasAsset(id)
	if err != nil {
		return ledger.AccountID{}, err
	}

	if !exists {
		return ledger.AccountID{}, fmt.Errorf("%w: %d", ErrUnknownAsset, id)
	}

	owner, found, err := env.Ledger.Owner(id)
	if err != nil {
		return ledger.AccountID{}, err
	}

	if !found {
		return ledger.AccountID{}, fmt.Errorf("asset %d has no owner", id)
	}

	return owner, nil
}
